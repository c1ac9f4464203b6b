package config

import (
	"flag"

	"github.com/dmitrijs2005/vaultsync/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string         gRPC bind address (e.g. ":50051")
//	-w string         HTTP/websocket bind address (e.g. ":8080")
//	-m string         storage backend: memory | postgres
//	-d string         PostgreSQL DSN
//	-s string         JWT HMAC secret key
//	-t duration       access token validity (e.g. "720h")
//	-o string         blob storage: inline | s3
//	-u, -p string     S3 root user / password
//	-b, -g, -e string S3 bucket / region / base endpoint
//	-n int            max versions returned by one listing
//	-log-level string
//	-log-backend string
//	-log-file string
//
// Arguments are filtered with flagx.FilterArgs first so that -c/-config and
// anything meant for other components is not reported as unknown.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{
		"-a", "-w", "-m", "-d", "-s", "-t", "-o", "-u", "-p", "-b", "-g", "-e", "-n",
		"-log-level", "-log-backend", "-log-file",
	})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.EndpointAddrHTTP, "w", config.EndpointAddrHTTP, "HTTP (websocket) address and port")
	fs.StringVar(&config.Storage, "m", config.Storage, "storage backend (memory|postgres)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.DurationVar(&config.AccessTokenValidityDuration, "t", config.AccessTokenValidityDuration, "access token validity")
	fs.StringVar(&config.BlobStorage, "o", config.BlobStorage, "blob storage (inline|s3)")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.IntVar(&config.ListVersionsMax, "n", config.ListVersionsMax, "max versions per listing")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level (debug|info|warn|error)")
	fs.StringVar(&config.LogBackend, "log-backend", config.LogBackend, "log backend (slog|zap)")
	fs.StringVar(&config.LogFile, "log-file", config.LogFile, "log file, rotated (default stdout)")

	return fs.Parse(args)
}
