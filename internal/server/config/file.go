package config

import (
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/configx"
	"github.com/dmitrijs2005/vaultsync/internal/flagx"
	"github.com/dmitrijs2005/vaultsync/internal/timex"
)

// fileConfig is the on-disk shape of Config. Durations accept "3s" or
// integer nanoseconds. Absent keys leave the current value untouched.
type fileConfig struct {
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	EndpointAddrHTTP            string         `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	Storage                     string         `json:"storage" yaml:"storage"`
	DatabaseDSN                 string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey                   string         `json:"secret_key" yaml:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	BlobStorage                 string         `json:"blob_storage" yaml:"blob_storage"`
	S3RootUser                  string         `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region                    string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	ListVersionsMax             int            `json:"list_versions_max" yaml:"list_versions_max"`
	LogBackend                  string         `json:"log_backend" yaml:"log_backend"`
	LogLevel                    string         `json:"log_level" yaml:"log_level"`
	LogFile                     string         `json:"log_file" yaml:"log_file"`
	WSWriteWait                 timex.Duration `json:"ws_write_wait" yaml:"ws_write_wait"`
	WSPongWait                  timex.Duration `json:"ws_pong_wait" yaml:"ws_pong_wait"`
	WSPingPeriod                timex.Duration `json:"ws_ping_period" yaml:"ws_ping_period"`
}

// parseFile overlays the file named by -c/-config, if any.
func parseFile(config *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	c := &fileConfig{}
	if err := configx.ReadFile(path, c); err != nil {
		return err
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.Storage, c.Storage)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setString(&config.BlobStorage, c.BlobStorage)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	if c.ListVersionsMax != 0 {
		config.ListVersionsMax = c.ListVersionsMax
	}
	setString(&config.LogBackend, c.LogBackend)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFile, c.LogFile)
	setDuration(&config.WSWriteWait, c.WSWriteWait)
	setDuration(&config.WSPongWait, c.WSPongWait)
	setDuration(&config.WSPingPeriod, c.WSPingPeriod)

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
