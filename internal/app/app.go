// Package app wires the local store, the HTTP client, the sync engine and
// the focus timer into the long-running client daemon, and handles graceful
// shutdown.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	_ "modernc.org/sqlite"

	"github.com/jiangjiax/goalify-client/internal/api"
	"github.com/jiangjiax/goalify-client/internal/auth"
	"github.com/jiangjiax/goalify-client/internal/config"
	"github.com/jiangjiax/goalify-client/internal/focus"
	"github.com/jiangjiax/goalify-client/internal/logging"
	"github.com/jiangjiax/goalify-client/internal/migrations"
	"github.com/jiangjiax/goalify-client/internal/netx"
	"github.com/jiangjiax/goalify-client/internal/repositories/metadata"
	"github.com/jiangjiax/goalify-client/internal/syncer"
	"github.com/jiangjiax/goalify-client/internal/timex"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config *config.Config
	log    logging.Logger
	db     *sql.DB
	tokens *auth.Store
	probe  netx.Probe
	engine *syncer.Engine
	focus  *focus.Manager

	modeMu sync.Mutex
	mode   Mode
}

func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	db, err := sql.Open("sqlite", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating store: %w", err)
	}

	meta := metadata.NewSQLiteRepository(db)
	tokens := auth.NewStore(meta)

	apiClient := api.NewHTTPClient(cfg.BaseURL, tokens, cfg.HTTPTimeout, log)

	probe, err := netx.NewDialProbe(cfg.BaseURL, 0)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring reachability probe: %w", err)
	}

	clock := timex.RealClock{}
	engine := syncer.New(db, apiClient, probe, clock, log, cfg.FetchDebounce)
	timer := focus.NewManager(meta, clock, focus.LogNotifier{Log: log}, log)

	return &App{
		config: cfg,
		log:    log,
		db:     db,
		tokens: tokens,
		probe:  probe,
		engine: engine,
		focus:  timer,
		mode:   ModeOffline,
	}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

func (app *App) Close() error {
	return app.db.Close()
}

// Engine exposes the sync engine for callers embedding the daemon.
func (app *App) Engine() *syncer.Engine { return app.engine }

// Focus exposes the focus-timer manager.
func (app *App) Focus() *focus.Manager { return app.focus }

// Login stores the bearer token for subsequent sync calls.
func (app *App) Login(ctx context.Context, token string) error {
	if err := app.tokens.SetToken(ctx, token); err != nil {
		return err
	}
	if exp, ok := auth.ExpiryHint(token); ok && exp.Before(time.Now()) {
		app.log.Warn(ctx, "stored token is already expired", "expired_at", exp)
	}
	app.log.Info(ctx, "auth token stored")
	return nil
}

func (app *App) setMode(ctx context.Context, mode Mode) {
	app.modeMu.Lock()
	changed := app.mode != mode
	app.mode = mode
	app.modeMu.Unlock()
	if changed {
		app.log.Info(ctx, "connectivity changed", "mode", string(mode))
	}
}

// Mode reports the last observed connectivity state.
func (app *App) Mode() Mode {
	app.modeMu.Lock()
	defer app.modeMu.Unlock()
	return app.mode
}

// startOnlineWatcher probes server reachability on a fixed cadence and logs
// online/offline transitions. The engine consults the probe itself before
// every operation; the watcher only provides the observable mode.
func (app *App) startOnlineWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if app.probe.Connected(ctx) {
				app.setMode(ctx, ModeOnline)
			} else {
				app.setMode(ctx, ModeOffline)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// syncCycle runs one full pull-then-push pass. The three stages fail
// independently so a broken profile route never blocks emotion sync.
func (app *App) syncCycle(ctx context.Context) error {
	var errs []error

	if err := app.engine.SyncUserProfile(ctx); err != nil {
		errs = append(errs, fmt.Errorf("profile: %w", err))
	}
	if err := app.engine.FetchRemoteUpdates(ctx); err != nil {
		errs = append(errs, fmt.Errorf("fetch: %w", err))
	}
	if err := app.engine.PushLocalChanges(ctx); err != nil {
		errs = append(errs, fmt.Errorf("push: %w", err))
	}

	return errors.Join(errs...)
}

// runCycleWithRetry retries a failed cycle a few times with fibonacci
// backoff. Only transport and server failures are retried; client errors
// (bad token, bad request) will not get better by waiting.
func (app *App) runCycleWithRetry(ctx context.Context) {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(2*time.Second))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := app.syncCycle(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, api.ErrNetwork) || errors.Is(err, api.ErrServer) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && ctx.Err() == nil {
		app.log.Warn(ctx, "sync cycle failed", "error", err)
	}
}

func (app *App) warnIfTokenExpired(ctx context.Context) {
	token, err := app.tokens.Token(ctx)
	if err != nil || token == "" {
		return
	}
	if exp, ok := auth.ExpiryHint(token); ok && exp.Before(time.Now()) {
		app.log.Warn(ctx, "stored token looks expired, sync will likely fail", "expired_at", exp)
	}
}

// Run restores any persisted focus session, then syncs on a fixed interval
// until the context is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.log.Info(ctx, "starting goalify client", "base_url", app.config.BaseURL, "interval", app.config.SyncInterval)

	app.initSignalHandler(cancelFunc)

	app.focus.Restore(ctx)
	app.warnIfTokenExpired(ctx)

	go app.startOnlineWatcher(ctx, 30*time.Second)

	ticker := time.NewTicker(app.config.SyncInterval)
	defer ticker.Stop()

	app.runCycleWithRetry(ctx)

	for {
		select {
		case <-ticker.C:
			app.runCycleWithRetry(ctx)
		case <-ctx.Done():
			app.log.Info(context.Background(), "shutting down")
			return
		}
	}
}
