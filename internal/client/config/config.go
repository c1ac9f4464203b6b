package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/configx"
)

// Config holds runtime settings for the vaultsync client.
//
// Fields:
//   - ServerEndpointAddr: host:port of the sync gRPC endpoint.
//   - NotifyEndpointAddr: host:port of the change-notification HTTP endpoint.
//     Empty disables server notifications in watch mode.
//   - DatabasePath: sqlite file holding local vaults, cursors and tokens.
//   - DeviceID: overrides the generated, persisted device id.
//   - MaxSyncAttempts: pull/merge/push rounds before giving up.
//   - PushTimeout: bound for a single push attempt.
//   - TombstoneRetention: deletions older than this are pruned before sealing.
//   - SyncInterval / WatchDebounce: watch mode ticker and write debounce.
type Config struct {
	ServerEndpointAddr string
	NotifyEndpointAddr string
	DatabasePath       string
	DeviceID           string
	MaxSyncAttempts    int
	PushTimeout        time.Duration
	TombstoneRetention time.Duration
	SyncInterval       time.Duration
	WatchDebounce      time.Duration
	LogBackend         string
	LogLevel           string
	LogFile            string
}

func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.NotifyEndpointAddr = "127.0.0.1:8080"
	c.DatabasePath = "vaultsync.db"
	c.MaxSyncAttempts = 5
	c.PushTimeout = 15 * time.Second
	c.TombstoneRetention = 720 * time.Hour
	c.SyncInterval = time.Minute
	c.WatchDebounce = 500 * time.Millisecond
	c.LogBackend = "slog"
	c.LogLevel = "warn"
}

func (c *Config) Validate() error {
	if c.ServerEndpointAddr == "" {
		return fmt.Errorf("server_endpoint_addr must be set")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must be set")
	}
	if c.MaxSyncAttempts <= 0 {
		return fmt.Errorf("max_sync_attempts must be positive, got %d", c.MaxSyncAttempts)
	}
	if c.PushTimeout <= 0 {
		return fmt.Errorf("push_timeout must be positive, got %s", c.PushTimeout)
	}
	if c.TombstoneRetention < 0 {
		return fmt.Errorf("tombstone_retention must not be negative, got %s", c.TombstoneRetention)
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync_interval must be positive, got %s", c.SyncInterval)
	}
	return nil
}

// Load applies defaults, then the file at path (if any), then env. Flags
// are applied afterwards by cobra through BindFlags.
func Load(path string, env *configx.Env) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if path != "" {
		if err := parseFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := parseEnv(cfg, env); err != nil {
		return nil, err
	}
	return cfg, nil
}
