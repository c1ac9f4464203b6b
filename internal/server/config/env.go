package config

import "github.com/dmitrijs2005/vaultsync/internal/configx"

// parseEnv overlays VAULTSYNC_* variables, e.g. VAULTSYNC_DATABASE_DSN.
func parseEnv(config *Config, env *configx.Env) error {
	env.String("ENDPOINT_ADDR_GRPC", &config.EndpointAddrGRPC)
	env.String("ENDPOINT_ADDR_HTTP", &config.EndpointAddrHTTP)
	env.String("STORAGE", &config.Storage)
	env.String("DATABASE_DSN", &config.DatabaseDSN)
	env.String("SECRET_KEY", &config.SecretKey)
	env.Duration("ACCESS_TOKEN_VALIDITY_DURATION", &config.AccessTokenValidityDuration)
	env.String("BLOB_STORAGE", &config.BlobStorage)
	env.String("S3_ROOT_USER", &config.S3RootUser)
	env.String("S3_ROOT_PASSWORD", &config.S3RootPassword)
	env.String("S3_BUCKET", &config.S3Bucket)
	env.String("S3_REGION", &config.S3Region)
	env.String("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	env.Int("LIST_VERSIONS_MAX", &config.ListVersionsMax)
	env.String("LOG_BACKEND", &config.LogBackend)
	env.String("LOG_LEVEL", &config.LogLevel)
	env.String("LOG_FILE", &config.LogFile)
	env.Duration("WS_WRITE_WAIT", &config.WSWriteWait)
	env.Duration("WS_PONG_WAIT", &config.WSPongWait)
	env.Duration("WS_PING_PERIOD", &config.WSPingPeriod)
	return env.Err()
}
