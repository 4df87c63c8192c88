package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"comic-edge/internal/backoff"
	"comic-edge/internal/logs"
	"comic-edge/internal/metrics"
	"comic-edge/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.UnixMilli(1714564800000)

func testRetry() backoff.Policy {
	return backoff.Policy{MaxRetries: 1, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	t.Run("schema version", func(t *testing.T) {
		v, err := db.Version(ctx)
		require.NoError(t, err)
		assert.Equal(t, schemaVersion, v)
	})

	t.Run("save and load", func(t *testing.T) {
		e := store.Entry{Key: "home-1", Value: []byte(`{"items":[]}`), StoredAt: base, TTL: time.Hour}
		require.NoError(t, db.Save(ctx, e))

		got, ok, err := db.Load(ctx, "home-1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, e.Value, got.Value)
		assert.True(t, got.StoredAt.Equal(base))
		assert.Equal(t, time.Hour, got.TTL)
	})

	t.Run("missing key", func(t *testing.T) {
		_, ok, err := db.Load(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("upsert overwrites", func(t *testing.T) {
		require.NoError(t, db.Save(ctx, store.Entry{Key: "k", Value: []byte("old"), StoredAt: base, TTL: time.Hour}))
		require.NoError(t, db.Save(ctx, store.Entry{Key: "k", Value: []byte("new"), StoredAt: base, TTL: time.Hour}))

		got, ok, err := db.Load(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("new"), got.Value)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, db.Save(ctx, store.Entry{Key: "gone", Value: []byte("x"), StoredAt: base, TTL: time.Hour}))
		require.NoError(t, db.Remove(ctx, "gone"))

		_, ok, err := db.Load(ctx, "gone")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("remove expired", func(t *testing.T) {
		require.NoError(t, db.Save(ctx, store.Entry{Key: "short", Value: []byte("1"), StoredAt: base, TTL: time.Second}))
		require.NoError(t, db.Save(ctx, store.Entry{Key: "long", Value: []byte("2"), StoredAt: base, TTL: 24 * time.Hour}))

		n, err := db.RemoveExpired(ctx, base.Add(2*time.Second))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, ok, _ := db.Load(ctx, "short")
		assert.False(t, ok)
		_, ok, _ = db.Load(ctx, "long")
		assert.True(t, ok)
	})
}

func TestSQLite_BacksTieredCache(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	reg := metrics.NewRegistry()
	logger := logs.NewLogger(20, logs.DEBUG)

	db, err := OpenSQLite(ctx, path)
	require.NoError(t, err)

	first := store.NewTiered(reg, logger, store.WithPersistent(db))
	first.Set(ctx, "categories", []byte(`["action"]`), time.Hour)
	require.NoError(t, db.Close())

	// a fresh process sees the entry through the persistent tier
	db2, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer db2.Close()

	second := store.NewTiered(reg, logger, store.WithPersistent(db2))
	val, ok := second.Get(ctx, "categories")
	require.True(t, ok)
	assert.Equal(t, []byte(`["action"]`), val)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	logger := logs.NewLogger(20, logs.DEBUG)

	t.Run("none", func(t *testing.T) {
		b, err := Open(ctx, Config{Backend: BackendNone}, logger)
		require.NoError(t, err)
		assert.Nil(t, b)
	})

	t.Run("sqlite creates parent dir", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "cache.db")
		b, err := Open(ctx, Config{Backend: BackendSQLite, SQLitePath: path, Retry: testRetry()}, logger)
		require.NoError(t, err)
		defer b.Close()

		_, err = os.Stat(path)
		assert.NoError(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := Open(ctx, Config{Backend: "memcached"}, logger)
		assert.ErrorIs(t, err, ErrUnknownBackend)
	})

	t.Run("redis unreachable", func(t *testing.T) {
		_, err := Open(ctx, Config{
			Backend: BackendRedis,
			Redis:   RedisConfig{Addr: "127.0.0.1:1"},
			Retry:   testRetry(),
		}, logger)
		assert.Error(t, err)
	})
}

// TestRedis runs against a live server only when REDIS_ADDR is set.
func TestRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()

	r := NewRedis(RedisConfig{Addr: addr, Prefix: "comic-edge-test:"})
	defer r.Close()
	require.NoError(t, r.Ping(ctx))

	now := time.Now()
	require.NoError(t, r.Save(ctx, store.Entry{Key: "k", Value: []byte("v"), StoredAt: now, TTL: time.Minute}))

	got, ok, err := r.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got.Value)

	require.NoError(t, r.Remove(ctx, "k"))
	_, ok, err = r.Load(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	// already expired entries are not written
	require.NoError(t, r.Save(ctx, store.Entry{Key: "old", Value: []byte("v"), StoredAt: now.Add(-time.Hour), TTL: time.Minute}))
	_, ok, _ = r.Load(ctx, "old")
	assert.False(t, ok)
}
