package config

import "time"

// Config holds runtime settings for the authkeeper CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the authkeeper gRPC endpoint.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - SessionFile: SQLite file the token pair is kept in between runs.
type Config struct {
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration
	SessionFile         string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.SessionFile = "authkeeper-session.db"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the config file (if given) and command-line flags. Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseFlags(cfg)
	return cfg
}
