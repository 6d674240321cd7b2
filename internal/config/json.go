package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/jiangjiax/goalify-client/internal/flagx"
	"github.com/jiangjiax/goalify-client/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "5m" or
// as integer nanoseconds. After parsing, values are copied into the runtime
// Config (which uses time.Duration).
type JsonConfig struct {
	BaseURL       string         `json:"base_url"`
	DatabaseDSN   string         `json:"database_dsn"`
	LogFile       string         `json:"log_file"`
	SyncInterval  timex.Duration `json:"sync_interval"`
	HTTPTimeout   timex.Duration `json:"http_timeout"`
	FetchDebounce timex.Duration `json:"fetch_debounce"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// Lookup order for the JSON file path:
//  1. Command-line flags (-c or -config) via flagx.JsonConfigFlags().
//  2. If empty, no JSON is loaded and the function returns.
//
// Reads and unmarshals the JSON, then copies the fields the file actually
// set into cfg. Panics on read or unmarshal errors (caller should recover if
// desired). Intended usage is defaults -> parseJson -> parseFlags, where
// later stages override earlier ones.
func parseJson(cfg *Config) {
	// Resolve file path from flags.
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.BaseURL != "" {
		cfg.BaseURL = jc.BaseURL
	}
	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.LogFile != "" {
		cfg.LogFile = jc.LogFile
	}
	if jc.SyncInterval.Duration != 0 {
		cfg.SyncInterval = time.Duration(jc.SyncInterval.Duration)
	}
	if jc.HTTPTimeout.Duration != 0 {
		cfg.HTTPTimeout = time.Duration(jc.HTTPTimeout.Duration)
	}
	if jc.FetchDebounce.Duration != 0 {
		cfg.FetchDebounce = time.Duration(jc.FetchDebounce.Duration)
	}
}
