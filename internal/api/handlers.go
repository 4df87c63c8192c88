package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strings"
	"time"

	"comic-edge/internal/edge"
	"comic-edge/internal/health"
	"comic-edge/internal/logs"
	"comic-edge/internal/metrics"
	"comic-edge/internal/origin"
	"comic-edge/internal/otruyen"
	"comic-edge/internal/prefetch"
	"comic-edge/internal/store"
)

// Cleaner runs one TTL sweep on demand.
type Cleaner interface {
	RunOnce(ctx context.Context) int
}

// Deps are the components the handlers serve.
type Deps struct {
	Cache   *store.Tiered
	Edge    *edge.Cache
	Queue   *prefetch.Queue
	Targets *prefetch.Targets
	Comics  *otruyen.Client
	Origins *origin.Tracker
	Cleaner Cleaner
	Metrics *metrics.Registry
	Logger  *logs.Logger
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	cache    *store.Tiered
	edge     *edge.Cache
	queue    *prefetch.Queue
	targets  *prefetch.Targets
	comics   *otruyen.Client
	origins  *origin.Tracker
	cleaner  Cleaner
	metrics  *metrics.Registry
	analyzer *health.Analyzer
	logger   *logs.Logger
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		cache:    d.Cache,
		edge:     d.Edge,
		queue:    d.Queue,
		targets:  d.Targets,
		comics:   d.Comics,
		origins:  d.Origins,
		cleaner:  d.Cleaner,
		metrics:  d.Metrics,
		analyzer: health.NewAnalyzer(d.Metrics, d.Logger),
		logger:   d.Logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

/* ---------------- PUT /cache/{key} ---------------- */

// maxTTLms is the largest ttl_ms that still fits in a time.Duration.
const maxTTLms = math.MaxInt64 / int64(time.Millisecond)

type setRequest struct {
	Value json.RawMessage `json:"value"`
	TTLms int64           `json:"ttl_ms,omitempty"`
}

func (h *Handler) SetKey(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/cache/")
	if key == "" {
		http.Error(w, "missing key in URL", http.StatusBadRequest)
		return
	}

	var req setRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if len(bytes.TrimSpace(req.Value)) == 0 {
		http.Error(w, "missing value", http.StatusBadRequest)
		return
	}
	if req.TTLms < 0 {
		http.Error(w, "ttl_ms must not be negative", http.StatusBadRequest)
		return
	}
	if req.TTLms > maxTTLms {
		http.Error(w, "ttl_ms too large", http.StatusBadRequest)
		return
	}

	h.cache.Set(r.Context(), key, req.Value, time.Duration(req.TTLms)*time.Millisecond)
	w.WriteHeader(http.StatusNoContent)
}

/* ---------------- GET /cache/{key} ---------------- */

func (h *Handler) GetKey(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/cache/")
	if key == "" {
		http.Error(w, "missing key", http.StatusBadRequest)
		return
	}

	value, ok := h.cache.Get(r.Context(), key)
	if !ok {
		http.Error(w, "key not found", http.StatusNotFound)
		return
	}
	if !json.Valid(value) {
		// written by a non-JSON caller of the store
		value, _ = json.Marshal(string(value))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"key":   key,
		"value": json.RawMessage(value),
	})
}

/* ---------------- DELETE /cache/{key} ---------------- */

func (h *Handler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/cache/")
	if key == "" {
		http.Error(w, "missing key", http.StatusBadRequest)
		return
	}

	h.cache.Delete(r.Context(), key)
	w.WriteHeader(http.StatusNoContent)
}

/* ---------------- GET /admin/keys ---------------- */

func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys := h.cache.Keys()
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(keys),
		"keys":  keys,
	})
}

/* ---------------- POST /admin/cleanup ---------------- */

func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	removed := h.cleaner.RunOnce(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

/* ---------------- GET /admin/buckets ---------------- */

func (h *Handler) ListBuckets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"buckets":    h.edge.Buckets().Stats(),
		"allow_list": h.edge.AllowList(),
	})
}

/* ---------------- GET /admin/origins ---------------- */

func (h *Handler) ListOrigins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.origins.Upstreams())
}

/* ---------------- GET /metrics ---------------- */

func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.Snapshot())
}

/* ---------------- GET /health ---------------- */

func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	report := h.analyzer.Analyze()

	status := http.StatusOK
	if report.OverallStatus == health.StatusCritical {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}
