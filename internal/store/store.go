package store

import (
	"bytes"
	"context"
	"sync"
	"time"

	"comic-edge/internal/logs"
	"comic-edge/internal/metrics"
)

const (
	DefaultMemoryItems = 100
	DefaultTTL         = 5 * time.Minute
)

// Persistent is the second tier behind the memory map. Implementations live
// in internal/persist. Errors are never surfaced to cache callers; Tiered logs
// them and carries on with memory only.
type Persistent interface {
	Load(ctx context.Context, key string) (Entry, bool, error)
	Save(ctx context.Context, e Entry) error
	Remove(ctx context.Context, key string) error
	RemoveExpired(ctx context.Context, now time.Time) (int, error)
}

// Tiered is a two-level object cache: a bounded in-memory map in front of an
// optional persistent store. Callers fall back to the network themselves on
// a miss and call Set with the result.
//
// Design principles:
// - Safe for concurrent access; the memory tier is guarded by a mutex
// - Persistent I/O happens outside the lock
// - Last write wins; concurrent Get-then-Set sequences are not coordinated
type Tiered struct {
	mu  sync.Mutex
	mem *memoryTier

	persist    Persistent
	now        func() time.Time
	defaultTTL time.Duration

	metrics *metrics.Registry
	logger  *logs.Logger
}

type Option func(*Tiered)

// WithPersistent installs the second tier. A nil store means memory only.
func WithPersistent(p Persistent) Option {
	return func(t *Tiered) { t.persist = p }
}

// WithClock replaces time.Now, mainly so tests can move time forward.
func WithClock(now func() time.Time) Option {
	return func(t *Tiered) { t.now = now }
}

// WithMemoryItems bounds the memory tier.
func WithMemoryItems(n int) Option {
	return func(t *Tiered) { t.mem = newMemoryTier(n) }
}

// WithDefaultTTL sets the TTL applied when Set receives ttl <= 0.
func WithDefaultTTL(d time.Duration) Option {
	return func(t *Tiered) {
		if d > 0 {
			t.defaultTTL = d
		}
	}
}

// NewTiered initializes and returns a new Tiered cache.
func NewTiered(reg *metrics.Registry, logger *logs.Logger, opts ...Option) *Tiered {
	t := &Tiered{
		mem:        newMemoryTier(DefaultMemoryItems),
		now:        time.Now,
		defaultTTL: DefaultTTL,
		metrics:    reg,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Get looks a key up in memory, then in the persistent tier.
//
// Behavior:
// - Returns (value, true) for a valid entry from either tier
// - Expired entries are deleted from the tier they were found in and treated as missing
// - A persistent hit is copied back into memory with its original StoredAt and TTL,
//   unless a Set for the key landed while the persistent tier was read
// - The returned slice is the caller's own copy
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	t.metrics.Inc(metrics.CacheGetsTotal)
	now := t.now()

	t.mu.Lock()
	e, ok := t.mem.get(key)
	if ok {
		if e.Valid(now) {
			t.mu.Unlock()
			t.metrics.Inc(metrics.CacheMemoryHitsTotal)
			return bytes.Clone(e.Value), true
		}
		t.mem.remove(key)
		t.metrics.Inc(metrics.CacheExpiredTotal)
		t.metrics.Set(metrics.CacheKeysTotal, int64(t.mem.len()))
	}
	t.mu.Unlock()

	if t.persist == nil {
		t.metrics.Inc(metrics.CacheMissesTotal)
		return nil, false
	}

	pe, found, err := t.persist.Load(ctx, key)
	if err != nil {
		t.persistFailed("load", key, err)
		t.metrics.Inc(metrics.CacheMissesTotal)
		return nil, false
	}
	if !found {
		t.metrics.Inc(metrics.CacheMissesTotal)
		return nil, false
	}

	if !pe.Valid(now) {
		if err := t.persist.Remove(ctx, key); err != nil {
			t.persistFailed("remove", key, err)
		}
		t.metrics.Inc(metrics.CacheExpiredTotal)
		t.metrics.Inc(metrics.CacheMissesTotal)
		return nil, false
	}

	t.mu.Lock()
	if cur, ok := t.mem.get(key); ok && cur.Valid(now) {
		// newer than what was loaded
		t.mu.Unlock()
		t.metrics.Inc(metrics.CacheMemoryHitsTotal)
		return bytes.Clone(cur.Value), true
	}
	t.storeMemoryLocked(pe)
	t.mu.Unlock()

	t.metrics.Inc(metrics.CachePersistHitsTotal)
	return bytes.Clone(pe.Value), true
}

// Set writes the value to both tiers. A ttl <= 0 uses the default TTL.
func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = t.defaultTTL
	}

	e := Entry{
		Key:      key,
		Value:    append([]byte(nil), value...),
		StoredAt: t.now(),
		TTL:      ttl,
	}

	t.metrics.Inc(metrics.CacheSetsTotal)

	t.mu.Lock()
	t.storeMemoryLocked(e)
	t.mu.Unlock()

	if t.persist == nil {
		return
	}
	if err := t.persist.Save(ctx, e); err != nil {
		t.persistFailed("save", key, err)
	}
}

// Delete removes a key from both tiers.
func (t *Tiered) Delete(ctx context.Context, key string) {
	t.mu.Lock()
	t.mem.remove(key)
	t.metrics.Set(metrics.CacheKeysTotal, int64(t.mem.len()))
	t.mu.Unlock()

	if t.persist == nil {
		return
	}
	if err := t.persist.Remove(ctx, key); err != nil {
		t.persistFailed("remove", key, err)
	}
}

// Cleanup removes every expired entry from both tiers and reports how many
// were dropped. It is driven by the TTL cleaner on a fixed interval.
func (t *Tiered) Cleanup(ctx context.Context) int {
	now := t.now()

	t.mu.Lock()
	removed := t.mem.sweep(now)
	t.metrics.Set(metrics.CacheKeysTotal, int64(t.mem.len()))
	t.mu.Unlock()

	if t.persist != nil {
		n, err := t.persist.RemoveExpired(ctx, now)
		if err != nil {
			t.persistFailed("cleanup", "*", err)
		}
		removed += n
	}

	if removed > 0 {
		t.metrics.Add(metrics.CacheExpiredTotal, int64(removed))
	}
	return removed
}

// Keys lists the live keys of the memory tier, oldest first.
func (t *Tiered) Keys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mem.keys(t.now())
}

// Len is the number of entries held in memory, expired or not.
func (t *Tiered) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mem.len()
}

// storeMemoryLocked must be called with t.mu held.
func (t *Tiered) storeMemoryLocked(e Entry) {
	if evicted, ok := t.mem.set(e); ok {
		t.metrics.Inc(metrics.CacheEvictionsTotal)
		t.logger.Debugf("cache: evicted %q from memory tier", evicted)
	}
	t.metrics.Set(metrics.CacheKeysTotal, int64(t.mem.len()))
}

func (t *Tiered) persistFailed(op, key string, err error) {
	t.metrics.Inc(metrics.PersistErrorsTotal)
	t.logger.Warnf("cache: persistent %s failed for %q, serving from memory only: %v", op, key, err)
}
