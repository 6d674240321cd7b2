// Package syncer keeps the local record store and the Goalify server
// converging. Conflicts are resolved by last-write-wins on the record's
// LastModified stamp; watermarks persisted in the metadata area make every
// operation safe to repeat.
package syncer

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jiangjiax/goalify-client/internal/api"
	"github.com/jiangjiax/goalify-client/internal/dbx"
	"github.com/jiangjiax/goalify-client/internal/logging"
	"github.com/jiangjiax/goalify-client/internal/models"
	"github.com/jiangjiax/goalify-client/internal/netx"
	"github.com/jiangjiax/goalify-client/internal/repositories/emotions"
	"github.com/jiangjiax/goalify-client/internal/repositories/metadata"
	"github.com/jiangjiax/goalify-client/internal/repositories/profile"
	"github.com/jiangjiax/goalify-client/internal/timex"
)

// Metadata keys. The names predate this package and are kept so an upgraded
// client does not lose its watermarks.
const (
	keyLastFetch       = "lastSyncDate"
	keyLastEmotionPush = "lastSyncDateEmotions"
	keyDeletedRecords  = "deletedRecords"
)

// DefaultDebounce suppresses repeat update fetches triggered by rapid UI
// re-entry.
const DefaultDebounce = 60 * time.Second

// Engine reconciles emotions and profile data with the server. Each
// operation kind carries its own in-flight guard, so concurrent calls
// cannot double-apply effects.
type Engine struct {
	db       *sql.DB
	client   api.Client
	emotions emotions.Repository
	profile  profile.Repository
	meta     metadata.Repository
	probe    netx.Probe
	clock    timex.Clock
	log      logging.Logger
	debounce time.Duration

	fetchMu     sync.Mutex
	pushMu      sync.Mutex
	profileMu   sync.Mutex
	energyMu    sync.Mutex
	deletionsMu sync.Mutex
}

func New(db *sql.DB, client api.Client, probe netx.Probe, clock timex.Clock, log logging.Logger, debounce time.Duration) *Engine {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Engine{
		db:       db,
		client:   client,
		emotions: emotions.NewSQLiteRepository(db),
		profile:  profile.NewSQLiteRepository(db),
		meta:     metadata.NewSQLiteRepository(db),
		probe:    probe,
		clock:    clock,
		log:      log,
		debounce: debounce,
	}
}

// SyncUserProfile pulls the authoritative profile and overwrites the local
// row unconditionally; the server wins for every profile field.
func (e *Engine) SyncUserProfile(ctx context.Context) error {
	e.profileMu.Lock()
	defer e.profileMu.Unlock()

	if !e.probe.Connected(ctx) {
		return fmt.Errorf("%w: offline", api.ErrNetwork)
	}

	u, err := e.client.FetchUser(ctx)
	if err != nil {
		return fmt.Errorf("syncing profile: %w", err)
	}

	p := &models.UserProfile{Username: u.Username, Email: u.Email, Energy: u.Energy}
	if err := e.profile.Upsert(ctx, p); err != nil {
		return fmt.Errorf("storing profile: %w", err)
	}

	e.log.Info(ctx, "profile synced", "username", u.Username, "energy", u.Energy)
	return nil
}

// FetchRemoteUpdates pulls records modified on the server since the fetch
// watermark and merges them last-write-wins. It is a silent no-op when
// offline, when a fetch is already in flight, or within the debounce window
// of the previous successful fetch. All upserts commit in one transaction;
// the watermark only advances after that commit, so a failed run re-fetches
// the same window and the merge re-applies as a no-op.
func (e *Engine) FetchRemoteUpdates(ctx context.Context) error {
	if !e.fetchMu.TryLock() {
		e.log.Debug(ctx, "update fetch already in flight, skipping")
		return nil
	}
	defer e.fetchMu.Unlock()

	if !e.probe.Connected(ctx) {
		e.log.Info(ctx, "offline, skipping update fetch")
		return nil
	}

	last, err := e.watermark(ctx, keyLastFetch)
	if err != nil {
		return err
	}
	if e.clock.Now().Sub(last) < e.debounce {
		e.log.Debug(ctx, "last fetch within debounce window, skipping", "last", last)
		return nil
	}

	resp, err := e.client.FetchUpdates(ctx, last)
	if err != nil {
		return fmt.Errorf("fetching updates: %w", err)
	}

	var applied, inserted int
	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := emotions.NewSQLiteRepository(tx)
		for _, dto := range resp.Emotions {
			local, err := repo.GetByID(ctx, dto.ID)
			if err != nil {
				return err
			}
			if local == nil {
				// Unknown record: insert verbatim, keeping the remote
				// identifier and modification time.
				if err := repo.Upsert(ctx, dto.Record()); err != nil {
					return err
				}
				inserted++
				continue
			}
			// Apply the remote copy only when strictly newer.
			if dto.LastModified.After(local.LastModified) {
				if err := repo.Upsert(ctx, dto.Record()); err != nil {
					return err
				}
				applied++
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("applying updates: %w", err)
	}

	if err := e.setWatermark(ctx, keyLastFetch, e.clock.Now()); err != nil {
		return fmt.Errorf("advancing fetch watermark: %w", err)
	}

	e.log.Info(ctx, "remote updates applied",
		"received", len(resp.Emotions), "updated", applied, "inserted", inserted)
	return nil
}

// PushLocalChanges uploads every record modified after the push watermark.
// An empty candidate set returns without a network call; the watermark
// advances only on a confirmed 2xx, so failed pushes retry the same set.
func (e *Engine) PushLocalChanges(ctx context.Context) error {
	if !e.pushMu.TryLock() {
		e.log.Debug(ctx, "push already in flight, skipping")
		return nil
	}
	defer e.pushMu.Unlock()

	if !e.probe.Connected(ctx) {
		e.log.Info(ctx, "offline, skipping push")
		return nil
	}

	mark, err := e.watermark(ctx, keyLastEmotionPush)
	if err != nil {
		return err
	}

	rows, err := e.emotions.ModifiedSince(ctx, mark)
	if err != nil {
		return fmt.Errorf("collecting local changes: %w", err)
	}
	if len(rows) == 0 {
		e.log.Debug(ctx, "no local changes to push")
		return nil
	}

	batch := make([]api.EmotionDTO, len(rows))
	for i := range rows {
		batch[i] = api.EmotionToDTO(&rows[i])
	}

	if err := e.client.PushEmotions(ctx, batch); err != nil {
		return fmt.Errorf("pushing emotions: %w", err)
	}

	if err := e.setWatermark(ctx, keyLastEmotionPush, e.clock.Now()); err != nil {
		return fmt.Errorf("advancing push watermark: %w", err)
	}

	e.log.Info(ctx, "local changes pushed", "count", len(batch))
	return nil
}

// FetchEnergyBalance reconciles the local energy balance with the server
// after an AI interaction consumed credit optimistically.
func (e *Engine) FetchEnergyBalance(ctx context.Context) (int, error) {
	e.energyMu.Lock()
	defer e.energyMu.Unlock()

	if !e.probe.Connected(ctx) {
		return 0, fmt.Errorf("%w: offline", api.ErrNetwork)
	}

	energy, err := e.client.FetchEnergy(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching energy: %w", err)
	}

	if err := e.profile.UpdateEnergy(ctx, energy); err != nil {
		return energy, fmt.Errorf("storing energy: %w", err)
	}
	return energy, nil
}

// HasUnsyncedChanges reports whether PushLocalChanges would find candidates.
// It mutates nothing; the UI polls it for the needs-sync indicator.
func (e *Engine) HasUnsyncedChanges(ctx context.Context) (bool, error) {
	mark, err := e.watermark(ctx, keyLastEmotionPush)
	if err != nil {
		return false, err
	}
	n, err := e.emotions.CountModifiedSince(ctx, mark)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteEmotion removes a record locally and queues its pending deletion so
// the removal can be reconciled once the server grows a deletion route.
func (e *Engine) DeleteEmotion(ctx context.Context, id string) error {
	if err := e.emotions.DeleteByID(ctx, id); err != nil {
		return err
	}
	return e.RecordPendingDeletion(ctx, "emotion", id)
}

func (e *Engine) watermark(ctx context.Context, key string) (time.Time, error) {
	b, err := e.meta.Get(ctx, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("reading watermark %s: %w", key, err)
	}
	if len(b) == 0 {
		// Never synced: everything counts as "after the watermark".
		return time.Unix(0, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, string(b))
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt watermark %s: %w", key, err)
	}
	return t, nil
}

func (e *Engine) setWatermark(ctx context.Context, key string, t time.Time) error {
	return e.meta.Set(ctx, key, []byte(t.UTC().Format(time.RFC3339Nano)))
}
