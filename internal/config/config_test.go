package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"comic-edge/internal/edge"
	"comic-edge/internal/logs"
	"comic-edge/internal/persist"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every known key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for k := range defaults {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, persist.BackendSQLite, cfg.CacheBackend)
	assert.Equal(t, 100, cfg.CacheMemoryItems)
	assert.Equal(t, 5*time.Minute, cfg.CacheDefaultTTL)
	assert.Equal(t, int64(edge.DefaultMaxBodyBytes), cfg.EdgeMaxBodyBytes)
	assert.Equal(t, edge.DefaultBucketMaxEntries, cfg.EdgeBucketMaxEntries)
	assert.Equal(t, edge.DefaultBucketMaxBytes, cfg.EdgeBucketMaxBytes)
	assert.True(t, cfg.PrefetchIdle)
	assert.Zero(t, cfg.PrefetchSeenTTL)
	assert.Equal(t, []string{"action", "romance", "comedy"}, cfg.PopularCategories())

	routes, err := cfg.Routes()
	require.NoError(t, err)
	assert.Equal(t, edge.DefaultRoutes(), routes)
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CACHE_DEFAULT_TTL", "90s")
	t.Setenv("PREFETCH_IDLE", "false")
	t.Setenv("EDGE_ROUTES", "/api/=network-first:dynamic-v1")
	t.Setenv("EDGE_POPULAR_CATEGORIES", " action , ,manhwa")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, persist.BackendRedis, cfg.CacheBackend)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 90*time.Second, cfg.CacheDefaultTTL)
	assert.False(t, cfg.PrefetchIdle)
	assert.Equal(t, []string{"action", "manhwa"}, cfg.PopularCategories())

	routes, err := cfg.Routes()
	require.NoError(t, err)
	assert.Len(t, routes, 1)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ADDR", ":9999")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("APP_ADDR=:7000\nLOG_LEVEL=debug\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.AppAddr, "environment wins over .env")
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("CACHE_BACKEND", "mongo")
	t.Setenv("ORIGIN_URL", "localhost")
	t.Setenv("EDGE_ROUTES", "nonsense")
	t.Setenv("EDGE_BUCKET_MAX_ENTRIES", "0")
	t.Setenv("EDGE_BUCKET_MAX_BYTES", "1024")

	_, err := Load("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, persist.ErrUnknownBackend))
	assert.Contains(t, err.Error(), "ORIGIN_URL")
	assert.Contains(t, err.Error(), "EDGE_ROUTES")
	assert.Contains(t, err.Error(), "EDGE_BUCKET_MAX_ENTRIES")
	assert.Contains(t, err.Error(), "EDGE_BUCKET_MAX_BYTES")
}

func TestString_MasksSecrets(t *testing.T) {
	cfg := &Config{CacheBackend: persist.BackendRedis, RedisAddr: "redis:6379", RedisPassword: "hunter2"}

	s := cfg.String()
	assert.NotContains(t, s, "hunter2")
	assert.Contains(t, s, "RedisPassword: ********")
	assert.Contains(t, s, "EdgeRoutes: (default)")
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL=INFO\n"), 0o644))

	changes := make(chan *Config, 4)
	w := NewWatcher(path, logs.NewLogger(20, logs.DEBUG), func(c *Config) { changes <- c })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()
	defer func() {
		cancel()
		assert.NoError(t, <-done)
	}()

	// give the watcher time to register
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL=DEBUG\nEDGE_POPULAR_CATEGORIES=horror\n"), 0o644))

	select {
	case cfg := <-changes:
		assert.Equal(t, "DEBUG", cfg.LogLevel)
		assert.Equal(t, []string{"horror"}, cfg.PopularCategories())
	case <-time.After(2 * time.Second):
		t.Fatal("no reload observed")
	}
}

func TestWatcher_RejectsInvalidReload(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CACHE_BACKEND=bogus\n"), 0o644))

	called := false
	logger := logs.NewLogger(20, logs.DEBUG)
	w := NewWatcher(path, logger, func(*Config) { called = true })
	w.reload(context.Background(), path)

	assert.False(t, called)
	last := logger.GetLast(1)
	require.Len(t, last, 1)
	assert.Contains(t, last[0].Message, "reload rejected")
}

func TestWatcher_NoReloadAfterCancel(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL=INFO\n"), 0o644))

	changes := make(chan *Config, 4)
	w := NewWatcher(path, logs.NewLogger(20, logs.DEBUG), func(c *Config) { changes <- c })

	t.Run("DirectReload", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		w.reload(ctx, path)
		assert.Empty(t, changes)
		assert.Empty(t, os.Getenv("LOG_LEVEL"), "env must not be touched after cancel")
	})

	t.Run("PendingDebounce", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- w.Start(ctx) }()

		time.Sleep(50 * time.Millisecond)
		require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL=DEBUG\n"), 0o644))
		// cancel inside the debounce window
		time.Sleep(reloadDebounce / 4)
		cancel()
		require.NoError(t, <-done)

		time.Sleep(3 * reloadDebounce)
		assert.Empty(t, changes)
	})
}
