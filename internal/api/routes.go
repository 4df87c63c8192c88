package api

import (
	"net/http"

	"comic-edge/internal/logs"
)

// RegisterRoutes mounts the service API on mux; every path not listed falls
// through to the edge asset cache. inflight may be nil.
func RegisterRoutes(mux *http.ServeMux, h *Handler, inflight *InFlight, logger *logs.Logger) http.Handler {
	// Tiered cache APIs
	mux.HandleFunc("/cache/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			h.SetKey(w, r)
		case http.MethodGet:
			h.GetKey(w, r)
		case http.MethodDelete:
			h.DeleteKey(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Admin APIs
	mux.HandleFunc("GET /admin/keys", h.ListKeys)
	mux.HandleFunc("GET /admin/buckets", h.ListBuckets)
	mux.HandleFunc("GET /admin/prefetch", h.PrefetchStats)
	mux.HandleFunc("GET /admin/origins", h.ListOrigins)
	mux.HandleFunc("/admin/cleanup", h.Cleanup)

	// Prefetch
	mux.HandleFunc("POST /prefetch", h.Prefetch)

	// Comic API
	mux.HandleFunc("GET /v1/home", h.Home)
	mux.HandleFunc("GET /v1/list/{status}", h.List)
	mux.HandleFunc("GET /v1/list/{status}/window", h.ListWindow)
	mux.HandleFunc("GET /v1/categories", h.Categories)
	mux.HandleFunc("GET /v1/categories/{slug}", h.ByCategory)
	mux.HandleFunc("GET /v1/comics/{slug}", h.Comic)
	mux.HandleFunc("GET /v1/search", h.Search)
	mux.HandleFunc("GET /v1/chapter", h.Chapter)
	mux.HandleFunc("GET /v1/window", h.Window)

	// Observability APIs
	mux.HandleFunc("GET /metrics", h.GetMetrics)
	mux.HandleFunc("GET /health", h.GetHealth)

	// Site origin
	mux.Handle("/", h.edge)

	chain := []Middleware{RequestID, Recovery(logger), Logging(logger)}
	if inflight != nil {
		chain = append(chain, inflight.Middleware)
	}
	return Chain(mux, chain...)
}
