// Package config loads the TOML analysis configuration.
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	SearchRoots   []string      `toml:"search_roots"`
	Exclude       Exclude       `toml:"exclude"`
	Build         Build         `toml:"build"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Build struct {
	ApplyTransforms bool `toml:"apply_transforms"`
	// ParseRate paces bulk scans in files per second. Zero means
	// unlimited.
	ParseRate  float64 `toml:"parse_rate"`
	ParseBurst int     `toml:"parse_burst"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.SearchRoots) == 0 {
		c.SearchRoots = []string{"."}
	}
	if len(c.Exclude.Dirs) == 0 {
		c.Exclude.Dirs = []string{".git", "__pycache__", ".venv", "venv"}
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = 500 * time.Millisecond
	}
	if c.Build.ParseRate > 0 && c.Build.ParseBurst == 0 {
		c.Build.ParseBurst = 1
	}
}
