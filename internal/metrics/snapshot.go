package metrics

import (
	"strings"
	"sync/atomic"
)

// Snapshot returns a copy of all metrics.
// Safe for concurrent use and immune to external mutation.
func (r *Registry) Snapshot() map[string]int64 {
	return r.SnapshotPrefix("")
}

// SnapshotPrefix returns a copy of the metrics whose key starts with prefix,
// e.g. "edge_" or "cache_".
func (r *Registry) SnapshotPrefix(prefix string) map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int64, len(r.counters))
	for key, ptr := range r.counters {
		if prefix != "" && !strings.HasPrefix(string(key), prefix) {
			continue
		}
		out[string(key)] = atomic.LoadInt64(ptr)
	}
	return out
}
