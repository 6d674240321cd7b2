package syncer

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiangjiax/goalify-client/internal/api"
	"github.com/jiangjiax/goalify-client/internal/logging"
	"github.com/jiangjiax/goalify-client/internal/models"
	"github.com/jiangjiax/goalify-client/internal/netx"
	"github.com/jiangjiax/goalify-client/internal/repositories/emotions"
	"github.com/jiangjiax/goalify-client/internal/repositories/profile"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE emotions (
  id TEXT PRIMARY KEY,
  emotion_type TEXT NOT NULL,
  intensity INTEGER NOT NULL,
  "trigger" TEXT NOT NULL DEFAULT '',
  unhealthy_beliefs TEXT NOT NULL DEFAULT '',
  healthy_emotion TEXT NOT NULL DEFAULT '',
  coping_strategies TEXT NOT NULL DEFAULT '',
  record_date INTEGER NOT NULL,
  last_modified INTEGER NOT NULL
);
CREATE TABLE profile (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL DEFAULT '',
  energy INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE metadata (
  key   TEXT PRIMARY KEY,
  value BLOB NOT NULL
);
`)
	require.NoError(t, err)
	return db
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type staticTokens string

func (s staticTokens) Token(ctx context.Context) (string, error) { return string(s), nil }

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newEngine(t *testing.T, db *sql.DB, handler http.Handler, clk *fakeClock, probe netx.Probe) *Engine {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := api.NewHTTPClient(srv.URL, staticTokens("tok"), 5*time.Second, testLogger())
	return New(db, client, probe, clk, testLogger(), DefaultDebounce)
}

func updatesHandler(calls *atomic.Int64, batch []api.EmotionDTO) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(api.UpdatesResponse{Emotions: batch})
	})
}

func dto(id string, emotionType string, modified time.Time) api.EmotionDTO {
	return api.EmotionDTO{
		ID:           id,
		EmotionType:  emotionType,
		Intensity:    2,
		RecordDate:   models.Timestamp{Time: modified},
		LastModified: models.Timestamp{Time: modified},
	}
}

func seedEmotion(t *testing.T, db *sql.DB, id, emotionType string, modified time.Time) {
	t.Helper()
	repo := emotions.NewSQLiteRepository(db)
	require.NoError(t, repo.Upsert(context.Background(), &models.EmotionRecord{
		ID:           id,
		EmotionType:  emotionType,
		Intensity:    models.IntensityMedium,
		RecordDate:   modified,
		LastModified: modified,
	}))
}

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestFetchRemoteUpdates_Debounce(t *testing.T) {
	db := setupDB(t)
	clk := &fakeClock{now: t0}
	var calls atomic.Int64
	e := newEngine(t, db, updatesHandler(&calls, nil), clk, netx.Always(true))
	ctx := context.Background()

	require.NoError(t, e.FetchRemoteUpdates(ctx))
	require.NoError(t, e.FetchRemoteUpdates(ctx)) // within 60s of success
	assert.Equal(t, int64(1), calls.Load())

	clk.Advance(61 * time.Second)
	require.NoError(t, e.FetchRemoteUpdates(ctx))
	assert.Equal(t, int64(2), calls.Load())
}

func TestFetchRemoteUpdates_LastWriteWins(t *testing.T) {
	db := setupDB(t)
	clk := &fakeClock{now: t0}
	ctx := context.Background()

	seedEmotion(t, db, "newer-remote", "local-old", t0.Add(-2*time.Hour))
	seedEmotion(t, db, "newer-local", "local-new", t0.Add(-time.Hour))

	var calls atomic.Int64
	batch := []api.EmotionDTO{
		dto("newer-remote", "remote-wins", t0.Add(-time.Hour)),       // strictly newer -> applied
		dto("newer-local", "remote-loses", t0.Add(-time.Hour)),       // equal -> discarded
		dto("fresh", "inserted-verbatim", t0.Add(-30*time.Minute)),   // unknown -> inserted
	}
	e := newEngine(t, db, updatesHandler(&calls, batch), clk, netx.Always(true))

	require.NoError(t, e.FetchRemoteUpdates(ctx))

	repo := emotions.NewSQLiteRepository(db)

	got, err := repo.GetByID(ctx, "newer-remote")
	require.NoError(t, err)
	assert.Equal(t, "remote-wins", got.EmotionType)
	assert.True(t, got.LastModified.Equal(t0.Add(-time.Hour)))

	got, err = repo.GetByID(ctx, "newer-local")
	require.NoError(t, err)
	assert.Equal(t, "local-new", got.EmotionType, "equal timestamps keep the local copy")

	got, err = repo.GetByID(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "inserted-verbatim", got.EmotionType)
	assert.True(t, got.LastModified.Equal(t0.Add(-30*time.Minute)), "remote stamp preserved on insert")
}

func TestFetchRemoteUpdates_IdempotentApply(t *testing.T) {
	db := setupDB(t)
	clk := &fakeClock{now: t0}
	ctx := context.Background()

	var calls atomic.Int64
	batch := []api.EmotionDTO{dto("e1", "anxious", t0.Add(-time.Hour))}
	e := newEngine(t, db, updatesHandler(&calls, batch), clk, netx.Always(true))

	require.NoError(t, e.FetchRemoteUpdates(ctx))
	clk.Advance(2 * time.Minute)
	require.NoError(t, e.FetchRemoteUpdates(ctx))
	assert.Equal(t, int64(2), calls.Load())

	repo := emotions.NewSQLiteRepository(db)
	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1, "re-applying the same batch must not duplicate")
	assert.True(t, all[0].LastModified.Equal(t0.Add(-time.Hour)))
}

func TestFetchRemoteUpdates_BadDateFailsClosed(t *testing.T) {
	db := setupDB(t)
	clk := &fakeClock{now: t0}
	ctx := context.Background()

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"emotions":[
			{"id":"good","emotionType":"x","intensity":2,"recordDate":"2024-01-01T10:00:00Z","lastModified":"2024-01-01T10:00:00Z"},
			{"id":"bad","emotionType":"y","intensity":2,"recordDate":"01-01-2024","lastModified":"01-01-2024"}
		]}`))
	})
	e := newEngine(t, db, h, clk, netx.Always(true))

	err := e.FetchRemoteUpdates(ctx)
	assert.ErrorIs(t, err, api.ErrParse)

	// Nothing applied, not even the well-formed item.
	repo := emotions.NewSQLiteRepository(db)
	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestFetchRemoteUpdates_SingleFlight(t *testing.T) {
	db := setupDB(t)
	clk := &fakeClock{now: t0}

	var calls atomic.Int64
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(150 * time.Millisecond)
		_, _ = w.Write([]byte(`{"emotions":[]}`))
	})
	e := newEngine(t, db, h, clk, netx.Always(true))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.FetchRemoteUpdates(context.Background())
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), calls.Load())
}

func TestPushLocalChanges_WatermarkMonotonic(t *testing.T) {
	db := setupDB(t)
	clk := &fakeClock{now: t0}
	ctx := context.Background()

	var posts atomic.Int64
	var mu sync.Mutex
	var lastBatch []api.EmotionDTO
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		var batch []api.EmotionDTO
		_ = json.NewDecoder(r.Body).Decode(&batch)
		mu.Lock()
		lastBatch = batch
		mu.Unlock()
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	})
	e := newEngine(t, db, h, clk, netx.Always(true))

	// A locally-authored record: fresh uuid, both stamps at authoring time.
	rec := models.NewEmotionRecord("anxious", models.IntensityHigh, t0.Add(-time.Hour))
	require.NotEmpty(t, rec.ID)
	repo := emotions.NewSQLiteRepository(db)
	require.NoError(t, repo.Upsert(ctx, rec))

	unsynced, err := e.HasUnsyncedChanges(ctx)
	require.NoError(t, err)
	assert.True(t, unsynced)

	require.NoError(t, e.PushLocalChanges(ctx))
	assert.Equal(t, int64(1), posts.Load())
	mu.Lock()
	require.Len(t, lastBatch, 1)
	assert.Equal(t, rec.ID, lastBatch[0].ID)
	mu.Unlock()

	// No new edits: candidate set is empty, zero network calls.
	require.NoError(t, e.PushLocalChanges(ctx))
	assert.Equal(t, int64(1), posts.Load())

	unsynced, err = e.HasUnsyncedChanges(ctx)
	require.NoError(t, err)
	assert.False(t, unsynced)

	// A fresh local edit bumps LastModified and re-enters the candidate set.
	clk.Advance(time.Minute)
	rec.EmotionType = "calmer"
	rec.Touch(clk.Now())
	require.NoError(t, repo.Upsert(ctx, rec))
	require.NoError(t, e.PushLocalChanges(ctx))
	assert.Equal(t, int64(2), posts.Load())
	mu.Lock()
	require.Len(t, lastBatch, 1)
	assert.Equal(t, "calmer", lastBatch[0].EmotionType)
	mu.Unlock()
}

func TestPushLocalChanges_EmptySetNoCall(t *testing.T) {
	db := setupDB(t)
	clk := &fakeClock{now: t0}

	var posts atomic.Int64
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { posts.Add(1) })
	e := newEngine(t, db, h, clk, netx.Always(true))

	require.NoError(t, e.PushLocalChanges(context.Background()))
	assert.Equal(t, int64(0), posts.Load())
}

func TestSyncUserProfile_ServerWins(t *testing.T) {
	db := setupDB(t)
	clk := &fakeClock{now: t0}
	ctx := context.Background()

	pr := profile.NewSQLiteRepository(db)
	require.NoError(t, pr.Upsert(ctx, &models.UserProfile{Username: "stale", Email: "stale@example.com", Energy: 3}))

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"user":{"username":"mia","email":"mia@example.com","energy":20}}`))
	})
	e := newEngine(t, db, h, clk, netx.Always(true))

	require.NoError(t, e.SyncUserProfile(ctx))

	p, err := pr.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mia", p.Username)
	assert.Equal(t, "mia@example.com", p.Email)
	assert.Equal(t, 20, p.Energy)
}

func TestFetchEnergyBalance_ReconcilesOptimisticDecrement(t *testing.T) {
	db := setupDB(t)
	clk := &fakeClock{now: t0}
	ctx := context.Background()

	pr := profile.NewSQLiteRepository(db)
	// UI decremented optimistically to 10; server says 12.
	require.NoError(t, pr.Upsert(ctx, &models.UserProfile{Username: "mia", Energy: 10}))

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"energy":12}`))
	})
	e := newEngine(t, db, h, clk, netx.Always(true))

	energy, err := e.FetchEnergyBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, energy)

	p, err := pr.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, p.Energy)
}

func TestOffline_SkipsQuietly(t *testing.T) {
	db := setupDB(t)
	clk := &fakeClock{now: t0}
	ctx := context.Background()

	var calls atomic.Int64
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })
	e := newEngine(t, db, h, clk, netx.Always(false))

	seedEmotion(t, db, "e1", "anxious", t0.Add(-time.Hour))

	require.NoError(t, e.FetchRemoteUpdates(ctx))
	require.NoError(t, e.PushLocalChanges(ctx))
	assert.ErrorIs(t, e.SyncUserProfile(ctx), api.ErrNetwork)
	_, err := e.FetchEnergyBalance(ctx)
	assert.ErrorIs(t, err, api.ErrNetwork)

	assert.Equal(t, int64(0), calls.Load())
}

func TestPendingDeletions_AppendOnlyLog(t *testing.T) {
	db := setupDB(t)
	clk := &fakeClock{now: t0}
	ctx := context.Background()
	e := newEngine(t, db, http.NotFoundHandler(), clk, netx.Always(true))

	got, err := e.PendingDeletions(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, e.RecordPendingDeletion(ctx, "emotion", "e1"))
	require.NoError(t, e.AppendPendingDeletions(ctx, []models.PendingDeletion{
		{Type: "emotion", ID: "e2"},
		{Type: "emotion", ID: "e3"},
	}))

	got, err = e.PendingDeletions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.PendingDeletion{
		{Type: "emotion", ID: "e1"},
		{Type: "emotion", ID: "e2"},
		{Type: "emotion", ID: "e3"},
	}, got)

	require.NoError(t, e.ClearPendingDeletions(ctx))
	got, err = e.PendingDeletions(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeleteEmotion_RemovesAndQueues(t *testing.T) {
	db := setupDB(t)
	clk := &fakeClock{now: t0}
	ctx := context.Background()
	e := newEngine(t, db, http.NotFoundHandler(), clk, netx.Always(true))

	seedEmotion(t, db, "e1", "anxious", t0)
	require.NoError(t, e.DeleteEmotion(ctx, "e1"))

	repo := emotions.NewSQLiteRepository(db)
	got, err := repo.GetByID(ctx, "e1")
	require.NoError(t, err)
	assert.Nil(t, got)

	pending, err := e.PendingDeletions(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.PendingDeletion{Type: "emotion", ID: "e1"}, pending[0])
}
