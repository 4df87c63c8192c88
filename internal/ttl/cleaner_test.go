package ttl

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"comic-edge/internal/logs"
	"comic-edge/internal/metrics"
	"comic-edge/internal/store"

	"github.com/stretchr/testify/assert"
)

/* ---------------- Mock Store ---------------- */

type mockStore struct {
	calls int32
}

func (m *mockStore) Cleanup(context.Context) int {
	return int(atomic.AddInt32(&m.calls, 1))
}

/* ---------------- Tests ---------------- */

func TestCleaner_RunOnce_RemovesExpiredAndUpdatesMetrics(t *testing.T) {
	st := &mockStore{}
	reg := metrics.NewRegistry()
	logger := logs.NewLogger(10, logs.DEBUG)

	cleaner := NewCleaner(st, time.Second, logger, reg)

	removed := cleaner.RunOnce(context.Background())

	assert.Equal(t, 1, removed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&st.calls))

	snap := reg.Snapshot()
	assert.Equal(t, int64(1), snap[string(metrics.TTLKeysRemovedTotal)])
	assert.Equal(t, int64(1), snap[string(metrics.TTLCleanupRunsTotal)])
}

func TestCleaner_RunOnce_SweepsTieredCache(t *testing.T) {
	reg := metrics.NewRegistry()
	logger := logs.NewLogger(10, logs.DEBUG)

	now := time.Now()
	clock := func() time.Time { return now }
	cache := store.NewTiered(reg, logger, store.WithClock(clock))

	ctx := context.Background()
	cache.Set(ctx, "a", []byte("1"), time.Second)
	cache.Set(ctx, "b", []byte("2"), time.Hour)

	now = now.Add(2 * time.Second)

	cleaner := NewCleaner(cache, time.Second, logger, reg)
	assert.Equal(t, 1, cleaner.RunOnce(ctx))
	assert.Equal(t, []string{"b"}, cache.Keys())
}

func TestCleaner_Start_RunsPeriodicallyAndTracksRuns(t *testing.T) {
	st := &mockStore{}
	reg := metrics.NewRegistry()
	logger := logs.NewLogger(10, logs.DEBUG)

	cleaner := NewCleaner(st, 5*time.Millisecond, logger, reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go cleaner.Start(ctx)

	assert.Eventually(t, func() bool {
		return reg.Get(metrics.TTLCleanupRunsTotal) >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestCleaner_Start_StopsOnContextCancel(t *testing.T) {
	st := &mockStore{}
	reg := metrics.NewRegistry()
	logger := logs.NewLogger(10, logs.DEBUG)

	cleaner := NewCleaner(st, 5*time.Millisecond, logger, reg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cleaner.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleaner did not stop after cancel")
	}

	runsAtStop := reg.Get(metrics.TTLCleanupRunsTotal)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, runsAtStop, reg.Get(metrics.TTLCleanupRunsTotal))
}
