package ttl

import (
	"context"
	"time"

	"comic-edge/internal/logs"
	"comic-edge/internal/metrics"
)

// Store defines the minimal contract required by the TTL cleaner.
// This keeps the cleaner decoupled from the concrete cache implementation.
type Store interface {
	Cleanup(ctx context.Context) int
}

// Cleaner periodically removes expired entries from the cache.
type Cleaner struct {
	store    Store
	interval time.Duration
	logger   *logs.Logger
	metrics  *metrics.Registry
}

// NewCleaner creates a new instance of TTL Cleaner
func NewCleaner(
	store Store,
	interval time.Duration,
	logger *logs.Logger,
	reg *metrics.Registry,
) *Cleaner {
	return &Cleaner{
		store:    store,
		interval: interval,
		logger:   logger,
		metrics:  reg,
	}
}

// Start runs the cleanup loop until the context is cancelled.
// It blocks and should typically be run in a separate goroutine.
func (c *Cleaner) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.RunOnce(ctx)
		case <-ctx.Done():
			c.logger.Debug("ttl cleaner stopped")
			return
		}
	}
}

// RunOnce performs a single cleanup cycle and returns the number of entries
// removed.
func (c *Cleaner) RunOnce(ctx context.Context) int {
	c.metrics.Inc(metrics.TTLCleanupRunsTotal)

	removed := c.store.Cleanup(ctx)
	if removed > 0 {
		c.metrics.Add(metrics.TTLKeysRemovedTotal, int64(removed))
		c.logger.Infof("ttl cleaner removed %d expired entries", removed)
	}
	return removed
}
