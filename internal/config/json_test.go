package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"base_url":       "https://goalify.example.com",
		"database_dsn":   "/var/lib/goalify/local.db",
		"sync_interval":  "10m",
		"http_timeout":   "15s",
		"fetch_debounce": "45s",
		"log_file":       "goalifyd.log",
	})

	t.Run("loads from flags", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "https://goalify.example.com", cfg.BaseURL)
		assert.Equal(t, "/var/lib/goalify/local.db", cfg.DatabaseDSN)
		assert.Equal(t, "goalifyd.log", cfg.LogFile)
		assert.Equal(t, 10*time.Minute, cfg.SyncInterval)
		assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
		assert.Equal(t, 45*time.Second, cfg.FetchDebounce)
	})

	t.Run("omitted fields keep defaults", func(t *testing.T) {
		sparse := writeTempJSON(t, dir, "sparse.json", map[string]any{
			"base_url": "https://other.example.com",
		})
		os.Args = []string{"testbin", "-c", sparse}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "https://other.example.com", cfg.BaseURL)
		assert.Equal(t, "goalify.db", cfg.DatabaseDSN)
		assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			BaseURL:      "defaults:1234",
			SyncInterval: 42 * time.Second,
		}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.BaseURL)
		assert.Equal(t, 42*time.Second, cfg.SyncInterval)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
