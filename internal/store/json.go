package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"comic-edge/internal/metrics"
)

// GetJSON reads key and decodes it into T. A payload that no longer decodes
// is dropped from both tiers and reported as a miss.
func GetJSON[T any](ctx context.Context, c *Tiered, key string) (T, bool) {
	var out T

	raw, ok := c.Get(ctx, key)
	if !ok {
		return out, false
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		c.metrics.Inc(metrics.CacheCorruptTotal)
		c.logger.Warnf("cache: discarding malformed payload for %q: %v", key, err)
		c.Delete(ctx, key)
		var zero T
		return zero, false
	}
	return out, true
}

// SetJSON encodes v and stores it under key.
func SetJSON[T any](ctx context.Context, c *Tiered, key string, v T, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache value %q: %w", key, err)
	}
	c.Set(ctx, key, raw, ttl)
	return nil
}
