// Package config loads runtime configuration for the Goalify sync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the Goalify backend
//	-d string   SQLite database path
//	-i int      background sync interval (seconds)
//	-l string   log file path (empty logs to stderr)
//	-v          verbose (debug) logging
//	-login      prompt for an auth token and store it, then exit
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "5m" or integer nanoseconds:
//
//	{
//	  "base_url": "https://goalify.example.com",
//	  "database_dsn": "goalify.db",
//	  "sync_interval": "5m",
//	  "http_timeout": "30s",
//	  "fetch_debounce": "60s",
//	  "log_file": "goalifyd.log"
//	}
//
// Note: this package does not read environment variables; use the JSON file
// or flags to configure values.
package config
