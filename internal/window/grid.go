package window

import "math"

// Grid windows a multi-column grid: rows of Columns items, each row
// ItemHeight tall plus Gap pixels of spacing. Buffer rows are added after
// the visible rows only.
type Grid struct {
	Items           int
	Columns         int
	ItemHeight      float64
	Gap             float64
	ContainerHeight float64
	BufferRows      int
}

func (g Grid) rowHeight() float64 {
	return g.ItemHeight + g.Gap
}

// Rows is the number of rows needed to lay out every item.
func (g Grid) Rows() int {
	if g.Columns <= 0 || g.Items <= 0 {
		return 0
	}
	cols := min(g.Columns, g.Items)
	return (g.Items + cols - 1) / cols
}

// Range returns the item window visible at scroll offset y.
func (g Grid) Range(y float64) Window {
	rh := g.rowHeight()
	if g.Columns <= 0 || g.Items <= 0 || !finitePositive(rh) {
		return Window{}
	}
	cols := min(g.Columns, g.Items)

	rows := g.Rows()
	startRow := index(math.Floor(y/rh), rows)
	visible := index(math.Ceil(g.ContainerHeight/rh), rows)
	buffer := min(max(g.BufferRows, 0), rows)
	endRow := min(startRow+visible+buffer, rows)

	return Window{
		Start: min(startRow*cols, g.Items),
		End:   min(endRow*cols, g.Items),
	}
}

// Offset is the translate-Y of the first rendered row.
func (g Grid) Offset(w Window) float64 {
	if g.Columns <= 0 {
		return 0
	}
	return float64(w.Start/g.Columns) * g.rowHeight()
}

// TotalHeight is the full scroll height of the grid.
func (g Grid) TotalHeight() float64 {
	return float64(g.Rows()) * g.rowHeight()
}
