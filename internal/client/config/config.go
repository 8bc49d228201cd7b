package config

import "time"

// Config holds runtime settings for the Libris client.
type Config struct {
	// BaseURL is the root of the library REST service.
	BaseURL string

	// DatabaseFile is the path of the local sqlite database.
	DatabaseFile string

	// RequestTimeout bounds individual API calls.
	RequestTimeout time.Duration

	// OnlineCheckInterval is how often the client probes server reachability.
	OnlineCheckInterval time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.BaseURL = "http://127.0.0.1:8080"
	c.DatabaseFile = "libris.db"
	c.RequestTimeout = 10 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
