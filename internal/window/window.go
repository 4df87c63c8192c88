// Package window computes which slice of a long, fixed-row-height list is
// visible for a given scroll offset, so only that slice has to be rendered
// or sent to a client.
package window

import "math"

// DefaultOverscan is the number of extra rows kept on each side of the
// viewport.
const DefaultOverscan = 5

// Window is the half-open item range [Start, End).
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len is the number of items in the window.
func (w Window) Len() int {
	return w.End - w.Start
}

// Viewport describes a list of Items rows of ItemHeight pixels shown in a
// container of ContainerHeight pixels.
type Viewport struct {
	Items           int
	ItemHeight      float64
	ContainerHeight float64
	Overscan        int
}

// Range returns the visible window for scroll offset y.
//
//	start = max(0, floor(y/itemHeight) - overscan)
//	end   = min(items, start + ceil(containerHeight/itemHeight) + 2*overscan)
//
// Negative or NaN offsets count as 0 and start never passes the end of the
// list. A non-positive or non-finite item height gives the empty window.
func (v Viewport) Range(y float64) Window {
	if v.Items <= 0 || !finitePositive(v.ItemHeight) {
		return Window{}
	}
	overscan := min(max(v.Overscan, 0), v.Items)

	start := index(math.Floor(y/v.ItemHeight), v.Items) - overscan
	start = max(start, 0)

	end := start + v.span() + 2*overscan
	end = min(end, v.Items)

	return Window{Start: start, End: end}
}

// MaxLen is the upper bound on Range(y).Len() for any y.
func (v Viewport) MaxLen() int {
	if v.Items <= 0 || !finitePositive(v.ItemHeight) {
		return 0
	}
	overscan := min(max(v.Overscan, 0), v.Items)
	return min(v.span()+2*overscan, v.Items)
}

// Offset is the translate-Y that positions the first rendered row.
func (v Viewport) Offset(w Window) float64 {
	return float64(w.Start) * v.ItemHeight
}

// TotalHeight is the spacer height that keeps the scrollbar proportional.
func (v Viewport) TotalHeight() float64 {
	return float64(max(v.Items, 0)) * v.ItemHeight
}

// span is the number of rows the container shows, capped at Items.
func (v Viewport) span() int {
	return index(math.Ceil(v.ContainerHeight/v.ItemHeight), v.Items)
}

func finitePositive(x float64) bool {
	return x > 0 && !math.IsInf(x, 1)
}

// index converts x to an int in [0, limit]. NaN maps to 0.
func index(x float64, limit int) int {
	switch {
	case math.IsNaN(x) || x <= 0:
		return 0
	case x >= float64(limit):
		return limit
	}
	return int(x)
}

// Indexed pairs an item with its absolute position in the full list.
type Indexed[T any] struct {
	Index int `json:"index"`
	Item  T   `json:"item"`
}

// Slice returns the items inside w. Bounds are clamped to the slice.
func Slice[T any](items []T, w Window) []Indexed[T] {
	start := min(max(w.Start, 0), len(items))
	end := min(max(w.End, start), len(items))

	out := make([]Indexed[T], 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, Indexed[T]{Index: i, Item: items[i]})
	}
	return out
}
