package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/configx"
	"github.com/google/go-cmp/cmp"
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

	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, ":8080", c.EndpointAddrHTTP)
	assert.Equal(t, StorageMemory, c.Storage)
	assert.Equal(t, BlobInline, c.BlobStorage)
	assert.Equal(t, 720*time.Hour, c.AccessTokenValidityDuration)
	assert.Equal(t, 100, c.ListVersionsMax)
	assert.Equal(t, "slog", c.LogBackend)
	require.NoError(t, c.Validate())
}

func TestLoad_NoSources(t *testing.T) {
	c, err := load(nil, configx.NewEnvFrom(nil))
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(defaults(), c))
}

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestLoad_Precedence(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"endpoint_addr_grpc":             "file:1",
		"storage":                        "postgres",
		"database_dsn":                   "file-dsn",
		"access_token_validity_duration": "1h",
		"list_versions_max":              20,
		"ws_pong_wait":                   "30s",
		"ws_ping_period":                 "20s",
	})
	env := configx.NewEnvFrom(map[string]string{
		"VAULTSYNC_DATABASE_DSN": "env-dsn",
		"VAULTSYNC_SECRET_KEY":   "env-secret",
	})
	args := []string{"-c", path, "-s", "flag-secret", "-log-level", "debug"}

	c, err := load(args, env)
	require.NoError(t, err)

	want := defaults()
	want.EndpointAddrGRPC = "file:1"
	want.Storage = StoragePostgres
	want.DatabaseDSN = "env-dsn"
	want.SecretKey = "flag-secret"
	want.AccessTokenValidityDuration = time.Hour
	want.ListVersionsMax = 20
	want.WSPongWait = 30 * time.Second
	want.WSPingPeriod = 20 * time.Second
	want.LogLevel = "debug"

	assert.Empty(t, cmp.Diff(want, c))
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("blob_storage: s3\nstorage: postgres\ns3_bucket: snapshots\n"), 0o600))

	c, err := load([]string{"-config", path}, configx.NewEnvFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, BlobS3, c.BlobStorage)
	assert.Equal(t, "snapshots", c.S3Bucket)
	require.NoError(t, c.Validate())
}

func TestLoad_Errors(t *testing.T) {
	_, err := load([]string{"-c", filepath.Join(t.TempDir(), "nope.json")}, configx.NewEnvFrom(nil))
	require.Error(t, err)

	_, err = load(nil, configx.NewEnvFrom(map[string]string{"VAULTSYNC_LIST_VERSIONS_MAX": "many"}))
	require.Error(t, err)

	_, err = load([]string{"-t", "forever"}, configx.NewEnvFrom(nil))
	require.Error(t, err)
}

func TestParseFlags(t *testing.T) {
	c := defaults()
	err := parseFlags(c, []string{
		"-a", "127.0.0.1:9090", "-w", ":9091", "-m", "postgres", "-d", "db", "-s", "secret",
		"-t", "2h", "-o", "s3", "-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1",
		"-e", "http://endpoint", "-n", "5", "-log-backend=zap", "-unknown", "x",
	})
	require.NoError(t, err)

	want := defaults()
	want.EndpointAddrGRPC = "127.0.0.1:9090"
	want.EndpointAddrHTTP = ":9091"
	want.Storage = StoragePostgres
	want.DatabaseDSN = "db"
	want.SecretKey = "secret"
	want.AccessTokenValidityDuration = 2 * time.Hour
	want.BlobStorage = BlobS3
	want.S3RootUser = "user"
	want.S3RootPassword = "password"
	want.S3Bucket = "bucket"
	want.S3Region = "us-west-1"
	want.S3BaseEndpoint = "http://endpoint"
	want.ListVersionsMax = 5
	want.LogBackend = "zap"

	assert.Empty(t, cmp.Diff(want, c))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown storage", func(c *Config) { c.Storage = "redis" }},
		{"unknown blob storage", func(c *Config) { c.BlobStorage = "gcs" }},
		{"s3 without postgres", func(c *Config) { c.BlobStorage = BlobS3 }},
		{"zero list limit", func(c *Config) { c.ListVersionsMax = 0 }},
		{"ping slower than pong", func(c *Config) { c.WSPingPeriod = time.Minute; c.WSPongWait = time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			tt.mutate(c)
			require.Error(t, c.Validate())
		})
	}
}
