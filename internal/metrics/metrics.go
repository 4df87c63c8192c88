package metrics

import (
	"sync"
	"sync/atomic"
)

// MetricKey is a strongly typed metric identifier.
type MetricKey string

// Metric keys (centralized)
const (
	// Tiered cache
	CacheKeysTotal        MetricKey = "cache_keys_total"
	CacheSetsTotal        MetricKey = "cache_sets_total"
	CacheGetsTotal        MetricKey = "cache_gets_total"
	CacheMemoryHitsTotal  MetricKey = "cache_memory_hits_total"
	CachePersistHitsTotal MetricKey = "cache_persist_hits_total"
	CacheMissesTotal      MetricKey = "cache_misses_total"
	CacheExpiredTotal     MetricKey = "cache_expired_total"
	CacheEvictionsTotal   MetricKey = "cache_evictions_total"
	CacheCorruptTotal     MetricKey = "cache_corrupt_total"
	PersistErrorsTotal    MetricKey = "persist_errors_total"

	// TTL
	TTLCleanupRunsTotal MetricKey = "ttl_cleanup_runs_total"
	TTLKeysRemovedTotal MetricKey = "ttl_keys_removed_total"

	// Edge asset cache
	EdgeHitsTotal          MetricKey = "edge_hits_total"
	EdgeMissesTotal        MetricKey = "edge_misses_total"
	EdgeStaleServedTotal   MetricKey = "edge_stale_served_total"
	EdgeRevalidationsTotal MetricKey = "edge_revalidations_total"
	EdgeOfflineTotal       MetricKey = "edge_offline_total"
	EdgeNetworkErrorsTotal MetricKey = "edge_network_errors_total"
	EdgeEvictionsTotal     MetricKey = "edge_evictions_total"

	// Prefetch
	PrefetchEnqueuedTotal   MetricKey = "prefetch_enqueued_total"
	PrefetchDuplicatesTotal MetricKey = "prefetch_duplicates_total"
	PrefetchExecutedTotal   MetricKey = "prefetch_executed_total"
	PrefetchFailuresTotal   MetricKey = "prefetch_failures_total"

	// Upstream comic API
	UpstreamRequestsTotal MetricKey = "upstream_requests_total"
	UpstreamErrorsTotal   MetricKey = "upstream_errors_total"

	// Origin health
	OriginHealthy          MetricKey = "origin_healthy"
	OriginUnhealthy        MetricKey = "origin_unhealthy"
	OriginFailuresTotal    MetricKey = "origin_failures_total"
	OriginProbeRunsTotal   MetricKey = "origin_probe_runs_total"
	OriginProbeFailedTotal MetricKey = "origin_probe_failed_total"
)

// Registry stores all metrics.
type Registry struct {
	mu       sync.RWMutex
	counters map[MetricKey]*int64
}

// NewRegistry creates a metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[MetricKey]*int64),
	}
}

// Inc increments a metric by 1.
func (r *Registry) Inc(key MetricKey) {
	r.Add(key, 1)
}

// Add increments a metric by delta.
func (r *Registry) Add(key MetricKey, delta int64) {
	r.mu.RLock()
	ptr, ok := r.counters[key]
	r.mu.RUnlock()

	if ok {
		atomic.AddInt64(ptr, delta)
		return
	}

	// Slow path: metric not yet initialized
	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if ptr, ok = r.counters[key]; ok {
		atomic.AddInt64(ptr, delta)
		return
	}

	var val int64
	r.counters[key] = &val
	atomic.AddInt64(&val, delta)
}

// Set overwrites a gauge-style metric.
func (r *Registry) Set(key MetricKey, value int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ptr, ok := r.counters[key]; ok {
		atomic.StoreInt64(ptr, value)
		return
	}
	val := value
	r.counters[key] = &val
}

// Get reads a single metric; unknown keys read as zero.
func (r *Registry) Get(key MetricKey) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ptr, ok := r.counters[key]; ok {
		return atomic.LoadInt64(ptr)
	}
	return 0
}
