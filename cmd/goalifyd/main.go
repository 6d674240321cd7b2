package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jiangjiax/goalify-client/internal/app"
	"github.com/jiangjiax/goalify-client/internal/buildinfo"
	"github.com/jiangjiax/goalify-client/internal/config"
	"github.com/jiangjiax/goalify-client/internal/logging"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := newLogger(cfg)

	a, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}
	defer a.Close()

	if cfg.Login {
		token, err := promptToken(os.Stdout)
		if err != nil {
			log.Fatalf("reading token: %v", err)
			return
		}
		if err := a.Login(ctx, token); err != nil {
			log.Fatalf("storing token: %v", err)
			return
		}
		fmt.Println("Token stored.")
		return
	}

	a.Run(ctx)
}

// newLogger builds the JSON logger. With -l the log goes to a size-rotated
// file; otherwise to stderr.
func newLogger(cfg *config.Config) logging.Logger {
	var w io.Writer = os.Stderr
	if cfg.LogFile != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}

	return logging.NewSlogLogger(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

// promptToken reads the auth token from the terminal without echo.
func promptToken(w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, "Auth token: "); err != nil {
		return "", err
	}
	b, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
