package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/configx"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, "127.0.0.1:50051", c.ServerEndpointAddr)
	assert.Equal(t, "vaultsync.db", c.DatabasePath)
	assert.Equal(t, 5, c.MaxSyncAttempts)
	assert.Equal(t, 15*time.Second, c.PushTimeout)
	assert.Equal(t, 720*time.Hour, c.TombstoneRetention)
	assert.Equal(t, time.Minute, c.SyncInterval)
	assert.Equal(t, 500*time.Millisecond, c.WatchDebounce)
	require.NoError(t, c.Validate())
}

func TestLoad_Layers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database_path: /tmp/a.db\npush_timeout: 3s\nmax_sync_attempts: 9\n"), 0o600))

	env := configx.NewEnvFrom(map[string]string{
		"VAULTSYNC_MAX_SYNC_ATTEMPTS": "2",
		"VAULTSYNC_DEVICE_ID":         "laptop",
	})
	cfg, err := Load(path, env)
	require.NoError(t, err)

	want := defaults()
	want.DatabasePath = "/tmp/a.db"
	want.PushTimeout = 3 * time.Second
	want.MaxSyncAttempts = 2
	want.DeviceID = "laptop"
	assert.Empty(t, cmp.Diff(want, cfg))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"), configx.NewEnvFrom(nil))
	require.Error(t, err)

	_, err = Load("", configx.NewEnvFrom(map[string]string{"VAULTSYNC_PUSH_TIMEOUT": "soon"}))
	require.ErrorContains(t, err, "VAULTSYNC_PUSH_TIMEOUT")
}

func TestBindFlags_OverrideLoaded(t *testing.T) {
	cfg := defaults()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs, cfg)

	require.NoError(t, fs.Parse([]string{"-a", "10.0.0.1:1", "--push-timeout", "1s", "--notify", ""}))
	assert.Equal(t, "10.0.0.1:1", cfg.ServerEndpointAddr)
	assert.Equal(t, time.Second, cfg.PushTimeout)
	assert.Empty(t, cfg.NotifyEndpointAddr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no server", func(c *Config) { c.ServerEndpointAddr = "" }},
		{"no db", func(c *Config) { c.DatabasePath = "" }},
		{"zero attempts", func(c *Config) { c.MaxSyncAttempts = 0 }},
		{"zero push timeout", func(c *Config) { c.PushTimeout = 0 }},
		{"negative retention", func(c *Config) { c.TombstoneRetention = -time.Second }},
		{"zero interval", func(c *Config) { c.SyncInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			tt.mutate(c)
			require.Error(t, c.Validate())
		})
	}
}
