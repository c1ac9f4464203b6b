// Package config loads runtime configuration for the vaultsync client.
//
// Sources, later ones winning:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON or YAML file named by --config.
//  3. VAULTSYNC_* environment variables (a .env file is honoured).
//  4. Command-line flags bound with BindFlags.
//
// # File schema
//
// Durations accept strings like "15s" or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "notify_endpoint_addr": "127.0.0.1:8080",
//	  "database_path": "vaultsync.db",
//	  "max_sync_attempts": 5,
//	  "push_timeout": "15s",
//	  "tombstone_retention": "720h",
//	  "sync_interval": "1m",
//	  "watch_debounce": "500ms"
//	}
package config
