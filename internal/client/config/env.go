package config

import "github.com/dmitrijs2005/vaultsync/internal/configx"

// parseEnv overlays VAULTSYNC_* variables, e.g. VAULTSYNC_SERVER_ENDPOINT_ADDR.
func parseEnv(cfg *Config, env *configx.Env) error {
	env.String("SERVER_ENDPOINT_ADDR", &cfg.ServerEndpointAddr)
	env.String("NOTIFY_ENDPOINT_ADDR", &cfg.NotifyEndpointAddr)
	env.String("DATABASE_PATH", &cfg.DatabasePath)
	env.String("DEVICE_ID", &cfg.DeviceID)
	env.Int("MAX_SYNC_ATTEMPTS", &cfg.MaxSyncAttempts)
	env.Duration("PUSH_TIMEOUT", &cfg.PushTimeout)
	env.Duration("TOMBSTONE_RETENTION", &cfg.TombstoneRetention)
	env.Duration("SYNC_INTERVAL", &cfg.SyncInterval)
	env.Duration("WATCH_DEBOUNCE", &cfg.WatchDebounce)
	env.String("LOG_BACKEND", &cfg.LogBackend)
	env.String("LOG_LEVEL", &cfg.LogLevel)
	env.String("LOG_FILE", &cfg.LogFile)
	return env.Err()
}
