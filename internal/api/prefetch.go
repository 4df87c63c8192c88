package api

import (
	"encoding/json"
	"net/http"

	"comic-edge/internal/prefetch"
)

const maxPrefetchTargets = 100

/* ---------------- POST /prefetch ---------------- */

type prefetchRequest struct {
	Targets  []string `json:"targets"`
	Priority string   `json:"priority"`
	Kind     string   `json:"kind"`
}

type prefetchResponse struct {
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
}

func (h *Handler) Prefetch(w http.ResponseWriter, r *http.Request) {
	var req prefetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if len(req.Targets) == 0 {
		http.Error(w, "no targets", http.StatusBadRequest)
		return
	}
	if len(req.Targets) > maxPrefetchTargets {
		http.Error(w, "too many targets", http.StatusRequestEntityTooLarge)
		return
	}

	priority, err := prefetch.ParsePriority(req.Priority)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	kind, err := prefetch.ParseKind(req.Kind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	for _, target := range req.Targets {
		if err := h.targets.Check(target); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	var resp prefetchResponse
	for _, target := range req.Targets {
		if h.queue.EnqueueTask(prefetch.Task{Target: target, Kind: kind, Priority: priority}) {
			resp.Accepted++
		} else {
			resp.Duplicates++
		}
	}
	writeJSON(w, http.StatusAccepted, resp)
}

/* ---------------- GET /admin/prefetch ---------------- */

func (h *Handler) PrefetchStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queue.Stats())
}
