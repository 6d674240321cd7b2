package config

import (
	"flag"
	"os"
	"time"

	"github.com/jiangjiax/goalify-client/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Note: the function filters os.Args to only include the flags it knows
// about, using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	// Filter args to include only those handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-i", "-l", "-v", "-login"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.BaseURL, "a", cfg.BaseURL, "base URL of the Goalify backend")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "path to the SQLite database")
	fs.StringVar(&cfg.LogFile, "l", cfg.LogFile, "log file path (empty logs to stderr)")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "verbose (debug) logging")
	fs.BoolVar(&cfg.Login, "login", cfg.Login, "prompt for an auth token, store it and exit")
	syncInterval := fs.Int("i", int(cfg.SyncInterval.Seconds()), "background sync interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
}
