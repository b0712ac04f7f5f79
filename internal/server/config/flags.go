package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string     gRPC bind address (e.g., ":50051")
//	-w string     HTTP bind address for health and JWKS (e.g., ":8080")
//	-d string     PostgreSQL DSN; empty keeps the in-memory backend
//	-r string     Redis address for the access token blocklist
//	-k string     signing key file
//	-t duration   access token lifetime (e.g., "15m")
//	-rt duration  refresh token lifetime (e.g., "720h")
//	-l string     log level
//
// Only these flags are looked at (flagx.FilterArgs), so the config file flags
// and flags of other packages do not collide.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-w", "-d", "-r", "-k", "-t", "-rt", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run gRPC server")
	fs.StringVar(&config.EndpointAddrHTTP, "w", config.EndpointAddrHTTP, "address and port to run HTTP server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.SigningKeyPath, "k", config.SigningKeyPath, "signing key file")
	fs.DurationVar(&config.AccessTokenTTL, "t", config.AccessTokenTTL, "access token lifetime")
	fs.DurationVar(&config.RefreshTokenTTL, "rt", config.RefreshTokenTTL, "refresh token lifetime")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
