package config

import (
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/configx"
	"github.com/dmitrijs2005/vaultsync/internal/timex"
)

// fileConfig is the on-disk shape of Config. Absent keys leave the current
// value untouched.
type fileConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr" yaml:"server_endpoint_addr"`
	NotifyEndpointAddr string         `json:"notify_endpoint_addr" yaml:"notify_endpoint_addr"`
	DatabasePath       string         `json:"database_path" yaml:"database_path"`
	DeviceID           string         `json:"device_id" yaml:"device_id"`
	MaxSyncAttempts    int            `json:"max_sync_attempts" yaml:"max_sync_attempts"`
	PushTimeout        timex.Duration `json:"push_timeout" yaml:"push_timeout"`
	TombstoneRetention timex.Duration `json:"tombstone_retention" yaml:"tombstone_retention"`
	SyncInterval       timex.Duration `json:"sync_interval" yaml:"sync_interval"`
	WatchDebounce      timex.Duration `json:"watch_debounce" yaml:"watch_debounce"`
	LogBackend         string         `json:"log_backend" yaml:"log_backend"`
	LogLevel           string         `json:"log_level" yaml:"log_level"`
	LogFile            string         `json:"log_file" yaml:"log_file"`
}

func parseFile(cfg *Config, path string) error {
	c := &fileConfig{}
	if err := configx.ReadFile(path, c); err != nil {
		return err
	}

	setString(&cfg.ServerEndpointAddr, c.ServerEndpointAddr)
	setString(&cfg.NotifyEndpointAddr, c.NotifyEndpointAddr)
	setString(&cfg.DatabasePath, c.DatabasePath)
	setString(&cfg.DeviceID, c.DeviceID)
	if c.MaxSyncAttempts != 0 {
		cfg.MaxSyncAttempts = c.MaxSyncAttempts
	}
	setDuration(&cfg.PushTimeout, c.PushTimeout)
	setDuration(&cfg.TombstoneRetention, c.TombstoneRetention)
	setDuration(&cfg.SyncInterval, c.SyncInterval)
	setDuration(&cfg.WatchDebounce, c.WatchDebounce)
	setString(&cfg.LogBackend, c.LogBackend)
	setString(&cfg.LogLevel, c.LogLevel)
	setString(&cfg.LogFile, c.LogFile)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
