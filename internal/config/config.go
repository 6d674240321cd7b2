package config

import (
	"time"

	"github.com/jiangjiax/goalify-client/internal/api"
	"github.com/jiangjiax/goalify-client/internal/syncer"
)

// Config holds runtime settings for the Goalify sync client.
//
// Durations: SyncInterval drives the background sync loop, HTTPTimeout caps
// each request, FetchDebounce suppresses repeat fetches (see syncer).
type Config struct {
	BaseURL       string
	DatabaseDSN   string
	LogFile       string
	SyncInterval  time.Duration
	HTTPTimeout   time.Duration
	FetchDebounce time.Duration
	Verbose       bool
	Login         bool
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.BaseURL = "http://localhost:8080"
	c.DatabaseDSN = "goalify.db"
	c.LogFile = ""
	c.SyncInterval = 5 * time.Minute
	c.HTTPTimeout = api.DefaultTimeout
	c.FetchDebounce = syncer.DefaultDebounce
	c.Verbose = false
	c.Login = false
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
