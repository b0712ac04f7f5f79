// Package config handles configuration for the server component: defaults,
// an optional .env file, a JSON or YAML config file, AUTH_* environment
// variables and command-line flags, applied in that order.
package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/keys"
)

// Config holds runtime settings for the authkeeper server.
//
// An empty DatabaseDSN selects the in-memory backend. RedisAddr, when set,
// moves the access token blocklist to Redis.
type Config struct {
	EndpointAddrGRPC string
	EndpointAddrHTTP string

	DatabaseDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Issuer           string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	RefreshRetention time.Duration
	KeyRetention     time.Duration
	SweepInterval    time.Duration
	BcryptCost       int

	SigningKeyPEM      string
	SigningKeyPath     string
	SigningKeyGenerate bool
	SigningKeyBits     int
	WatchKeyFile       bool

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3Key       string
	S3AccessKey string
	S3SecretKey string

	LogLevel  string
	LogFormat string
}

// LoadDefaults populates Config with development defaults: in-memory
// storage and a generated signing key.
func (c *Config) LoadDefaults() {
	c.EndpointAddrGRPC = ":50051"
	c.EndpointAddrHTTP = ":8080"
	c.Issuer = "authkeeper"
	c.AccessTokenTTL = 15 * time.Minute
	c.RefreshTokenTTL = 30 * 24 * time.Hour
	c.RefreshRetention = 7 * 24 * time.Hour
	c.KeyRetention = 24 * time.Hour
	c.SweepInterval = 10 * time.Minute
	c.BcryptCost = 12
	c.SigningKeyGenerate = true
	c.SigningKeyBits = keys.DefaultKeyBits
	c.S3Region = "us-east-1"
	c.LogLevel = "info"
	c.LogFormat = "json"
}

// KeySource maps the signing key settings onto keys.SourceConfig.
func (c *Config) KeySource() keys.SourceConfig {
	return keys.SourceConfig{
		PEM:  c.SigningKeyPEM,
		Path: c.SigningKeyPath,
		S3: keys.S3Location{
			Endpoint:  c.S3Endpoint,
			Region:    c.S3Region,
			Bucket:    c.S3Bucket,
			Key:       c.S3Key,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
		},
		Generate: c.SigningKeyGenerate,
		Bits:     c.SigningKeyBits,
	}
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch {
	case c.EndpointAddrGRPC == "":
		return fmt.Errorf("grpc address is required")
	case c.AccessTokenTTL <= 0:
		return fmt.Errorf("access token ttl must be positive, got %s", c.AccessTokenTTL)
	case c.RefreshTokenTTL <= 0:
		return fmt.Errorf("refresh token ttl must be positive, got %s", c.RefreshTokenTTL)
	case c.RefreshRetention < 0 || c.KeyRetention < 0:
		return fmt.Errorf("retention must not be negative")
	case c.SweepInterval <= 0:
		return fmt.Errorf("sweep interval must be positive, got %s", c.SweepInterval)
	case c.WatchKeyFile && c.SigningKeyPath == "":
		return fmt.Errorf("watching the key file needs a key path")
	}
	return nil
}

// LoadConfig builds a Config by applying defaults, then the .env file, the
// config file named by -c/-config, the environment and finally flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	loadDotEnv()
	parseFile(cfg)
	if err := parseEnv(cfg); err != nil {
		panic(err)
	}
	parseFlags(cfg)
	return cfg
}
