package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// envFile is read before the environment; variables already set win.
var envFile = ".env"

func loadDotEnv() {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}
}

type envVar struct {
	name string
	set  func(string) error
}

func envString(name string, dst *string) envVar {
	return envVar{name, func(v string) error { *dst = v; return nil }}
}

func envInt(name string, dst *int) envVar {
	return envVar{name, func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}}
}

func envBool(name string, dst *bool) envVar {
	return envVar{name, func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}}
}

func envDuration(name string, dst *time.Duration) envVar {
	return envVar{name, func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}}
}

// parseEnv overlays AUTH_* environment variables. Unset variables are
// skipped; a set but unparsable value is an error.
func parseEnv(c *Config) error {
	vars := []envVar{
		envString("AUTH_GRPC_ADDRESS", &c.EndpointAddrGRPC),
		envString("AUTH_HTTP_ADDRESS", &c.EndpointAddrHTTP),
		envString("AUTH_DATABASE_DSN", &c.DatabaseDSN),
		envString("AUTH_REDIS_ADDR", &c.RedisAddr),
		envString("AUTH_REDIS_PASSWORD", &c.RedisPassword),
		envInt("AUTH_REDIS_DB", &c.RedisDB),
		envString("AUTH_ISSUER", &c.Issuer),
		envDuration("AUTH_ACCESS_TOKEN_TTL", &c.AccessTokenTTL),
		envDuration("AUTH_REFRESH_TOKEN_TTL", &c.RefreshTokenTTL),
		envDuration("AUTH_REFRESH_RETENTION", &c.RefreshRetention),
		envDuration("AUTH_KEY_RETENTION", &c.KeyRetention),
		envDuration("AUTH_SWEEP_INTERVAL", &c.SweepInterval),
		envInt("AUTH_BCRYPT_COST", &c.BcryptCost),
		envString("AUTH_PRIVATE_KEY", &c.SigningKeyPEM),
		envString("AUTH_PRIVATE_KEY_PATH", &c.SigningKeyPath),
		envBool("AUTH_PRIVATE_KEY_GENERATE", &c.SigningKeyGenerate),
		envInt("AUTH_PRIVATE_KEY_BITS", &c.SigningKeyBits),
		envBool("AUTH_WATCH_KEY_FILE", &c.WatchKeyFile),
		envString("AUTH_S3_ENDPOINT", &c.S3Endpoint),
		envString("AUTH_S3_REGION", &c.S3Region),
		envString("AUTH_S3_BUCKET", &c.S3Bucket),
		envString("AUTH_S3_KEY", &c.S3Key),
		envString("AUTH_S3_ACCESS_KEY", &c.S3AccessKey),
		envString("AUTH_S3_SECRET_KEY", &c.S3SecretKey),
		envString("AUTH_LOG_LEVEL", &c.LogLevel),
		envString("AUTH_LOG_FORMAT", &c.LogFormat),
	}

	for _, v := range vars {
		raw, ok := os.LookupEnv(v.name)
		if !ok {
			continue
		}
		if err := v.set(raw); err != nil {
			return fmt.Errorf("%s: %w", v.name, err)
		}
	}
	return nil
}
