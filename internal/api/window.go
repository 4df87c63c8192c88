package api

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"comic-edge/internal/window"
)

type windowView struct {
	Start       int     `json:"start"`
	End         int     `json:"end"`
	Offset      float64 `json:"offset"`
	TotalHeight float64 `json:"total_height"`
}

type geometry struct {
	scrollTop, itemHeight, containerHeight, gap float64
	overscan, columns                           int
}

func parseGeometry(q url.Values) (geometry, error) {
	g := geometry{overscan: window.DefaultOverscan, columns: 1}

	floats := []struct {
		name     string
		dst      *float64
		required bool
	}{
		{"scroll_top", &g.scrollTop, false},
		{"item_height", &g.itemHeight, true},
		{"container_height", &g.containerHeight, true},
		{"gap", &g.gap, false},
	}
	for _, f := range floats {
		raw := q.Get(f.name)
		if raw == "" {
			if f.required {
				return g, fmt.Errorf("missing %s", f.name)
			}
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return g, fmt.Errorf("invalid %s %q", f.name, raw)
		}
		*f.dst = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"overscan", &g.overscan},
		{"columns", &g.columns},
	}
	for _, f := range ints {
		raw := q.Get(f.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return g, fmt.Errorf("invalid %s %q", f.name, raw)
		}
		*f.dst = v
	}
	return g, nil
}

// compute picks the flat or grid calculator.
func (g geometry) compute(items int) windowView {
	if g.columns > 1 {
		grid := window.Grid{
			Items:           items,
			Columns:         g.columns,
			ItemHeight:      g.itemHeight,
			Gap:             g.gap,
			ContainerHeight: g.containerHeight,
			BufferRows:      g.overscan,
		}
		w := grid.Range(g.scrollTop)
		return windowView{Start: w.Start, End: w.End, Offset: grid.Offset(w), TotalHeight: grid.TotalHeight()}
	}

	vp := window.Viewport{
		Items:           items,
		ItemHeight:      g.itemHeight,
		ContainerHeight: g.containerHeight,
		Overscan:        g.overscan,
	}
	w := vp.Range(g.scrollTop)
	return windowView{Start: w.Start, End: w.End, Offset: vp.Offset(w), TotalHeight: vp.TotalHeight()}
}

/* ---------------- GET /v1/window ---------------- */

func (h *Handler) Window(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := strconv.Atoi(q.Get("items"))
	if err != nil || items < 0 {
		http.Error(w, "invalid items", http.StatusBadRequest)
		return
	}
	g, err := parseGeometry(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, g.compute(items))
}

/* ---------------- GET /v1/list/{status}/window ---------------- */

type listWindowView struct {
	windowView
	Items []window.Indexed[comicCard] `json:"items"`
}

func (h *Handler) ListWindow(w http.ResponseWriter, r *http.Request) {
	g, err := parseGeometry(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := h.comics.List(r.Context(), r.PathValue("status"), pageParam(r))
	if err != nil {
		h.upstreamError(w, err)
		return
	}

	cards := h.cards(p.Items)
	view := g.compute(len(cards))
	visible := window.Slice(cards, window.Window{Start: view.Start, End: view.End})

	writeJSON(w, http.StatusOK, listWindowView{windowView: view, Items: visible})
}
