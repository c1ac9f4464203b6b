package config

import "github.com/spf13/pflag"

// BindFlags registers persistent flags that write straight into cfg. Call it
// after Load so that flag defaults show the file and env values.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.ServerEndpointAddr, "server", "a", cfg.ServerEndpointAddr, "sync server gRPC address")
	fs.StringVar(&cfg.NotifyEndpointAddr, "notify", cfg.NotifyEndpointAddr, "sync server notification address (empty disables)")
	fs.StringVarP(&cfg.DatabasePath, "db", "d", cfg.DatabasePath, "local database file")
	fs.StringVar(&cfg.DeviceID, "device-id", cfg.DeviceID, "device id override")
	fs.IntVar(&cfg.MaxSyncAttempts, "max-sync-attempts", cfg.MaxSyncAttempts, "sync rounds before giving up")
	fs.DurationVar(&cfg.PushTimeout, "push-timeout", cfg.PushTimeout, "timeout of a single push")
	fs.DurationVar(&cfg.TombstoneRetention, "tombstone-retention", cfg.TombstoneRetention, "how long deletions are kept")
	fs.DurationVar(&cfg.SyncInterval, "sync-interval", cfg.SyncInterval, "watch mode sync interval")
	fs.DurationVar(&cfg.WatchDebounce, "watch-debounce", cfg.WatchDebounce, "watch mode debounce for local writes")
	fs.StringVar(&cfg.LogBackend, "log-backend", cfg.LogBackend, "log backend (slog|zap)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug|info|warn|error)")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "log file, rotated (default stderr)")
}
