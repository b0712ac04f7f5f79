package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk form of Config. Durations use timex.Duration so
// files may say "15m" or give nanoseconds. Zero values leave the current
// setting untouched.
type FileConfig struct {
	EndpointAddrGRPC string `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	EndpointAddrHTTP string `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`

	DatabaseDSN   string `json:"database_dsn" yaml:"database_dsn"`
	RedisAddr     string `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `json:"redis_password" yaml:"redis_password"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db"`

	Issuer           string         `json:"issuer" yaml:"issuer"`
	AccessTokenTTL   timex.Duration `json:"access_token_ttl" yaml:"access_token_ttl"`
	RefreshTokenTTL  timex.Duration `json:"refresh_token_ttl" yaml:"refresh_token_ttl"`
	RefreshRetention timex.Duration `json:"refresh_retention" yaml:"refresh_retention"`
	KeyRetention     timex.Duration `json:"key_retention" yaml:"key_retention"`
	SweepInterval    timex.Duration `json:"sweep_interval" yaml:"sweep_interval"`
	BcryptCost       int            `json:"bcrypt_cost" yaml:"bcrypt_cost"`

	SigningKeyPath     string `json:"signing_key_path" yaml:"signing_key_path"`
	SigningKeyGenerate *bool  `json:"signing_key_generate" yaml:"signing_key_generate"`
	SigningKeyBits     int    `json:"signing_key_bits" yaml:"signing_key_bits"`
	WatchKeyFile       *bool  `json:"watch_key_file" yaml:"watch_key_file"`

	S3Endpoint  string `json:"s3_endpoint" yaml:"s3_endpoint"`
	S3Region    string `json:"s3_region" yaml:"s3_region"`
	S3Bucket    string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Key       string `json:"s3_key" yaml:"s3_key"`
	S3AccessKey string `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey string `json:"s3_secret_key" yaml:"s3_secret_key"`

	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`
}

// parseFile overlays the config file given by -c or -config. Files ending in
// .yaml or .yml are read as YAML, everything else as JSON. A file that cannot
// be read or decoded panics.
func parseFile(config *Config) {
	path := flagx.ConfigPath()

	// nothing to load
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *FileConfig) apply(config *Config) {
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setInt(&config.RedisDB, c.RedisDB)
	setString(&config.Issuer, c.Issuer)
	setDuration(&config.AccessTokenTTL, c.AccessTokenTTL)
	setDuration(&config.RefreshTokenTTL, c.RefreshTokenTTL)
	setDuration(&config.RefreshRetention, c.RefreshRetention)
	setDuration(&config.KeyRetention, c.KeyRetention)
	setDuration(&config.SweepInterval, c.SweepInterval)
	setInt(&config.BcryptCost, c.BcryptCost)
	setString(&config.SigningKeyPath, c.SigningKeyPath)
	if c.SigningKeyGenerate != nil {
		config.SigningKeyGenerate = *c.SigningKeyGenerate
	}
	setInt(&config.SigningKeyBits, c.SigningKeyBits)
	if c.WatchKeyFile != nil {
		config.WatchKeyFile = *c.WatchKeyFile
	}
	setString(&config.S3Endpoint, c.S3Endpoint)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Key, c.S3Key)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
