package window

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewportRange(t *testing.T) {
	v := Viewport{Items: 1000, ItemHeight: 400, ContainerHeight: 800, Overscan: 2}

	t.Run("top of list", func(t *testing.T) {
		w := v.Range(0)
		assert.Equal(t, Window{Start: 0, End: 6}, w)
		assert.Equal(t, 6, w.Len())
	})

	t.Run("scrolled", func(t *testing.T) {
		w := v.Range(4000) // row 10
		assert.Equal(t, Window{Start: 8, End: 14}, w)
		assert.Equal(t, float64(3200), v.Offset(w))
	})

	t.Run("near the end", func(t *testing.T) {
		w := v.Range(399_000)
		assert.Equal(t, 1000, w.End)
		assert.LessOrEqual(t, w.Start, w.End)
	})

	t.Run("past the end", func(t *testing.T) {
		w := v.Range(10_000_000)
		assert.Equal(t, Window{Start: 1000, End: 1000}, w)
	})

	t.Run("negative scroll", func(t *testing.T) {
		assert.Equal(t, v.Range(0), v.Range(-250))
	})

	t.Run("spacer height", func(t *testing.T) {
		assert.Equal(t, float64(400_000), v.TotalHeight())
	})
}

func TestViewportRange_Bounds(t *testing.T) {
	viewports := []Viewport{
		{Items: 1000, ItemHeight: 400, ContainerHeight: 800, Overscan: 2},
		{Items: 3, ItemHeight: 50, ContainerHeight: 900, Overscan: 5},
		{Items: 57, ItemHeight: 33.5, ContainerHeight: 610, Overscan: 0},
		{Items: 1, ItemHeight: 10, ContainerHeight: 10, Overscan: 1},
	}

	for _, v := range viewports {
		limit := int(math.Ceil(v.ContainerHeight/v.ItemHeight)) + 2*v.Overscan
		assert.Equal(t, min(limit, v.Items), v.MaxLen())

		for y := 0.0; y <= v.TotalHeight()+1000; y += 17 {
			w := v.Range(y)
			require.GreaterOrEqual(t, w.Start, 0)
			require.LessOrEqual(t, w.End, v.Items)
			require.LessOrEqual(t, w.Start, w.End)
			require.LessOrEqual(t, w.Len(), limit, "y=%v", y)
		}
	}
}

func TestViewportRange_Degenerate(t *testing.T) {
	assert.Equal(t, Window{}, Viewport{Items: 10, ItemHeight: 0, ContainerHeight: 100}.Range(50))
	assert.Equal(t, Window{}, Viewport{Items: 0, ItemHeight: 10, ContainerHeight: 100}.Range(50))
	assert.Equal(t, 0, Viewport{ItemHeight: 0}.MaxLen())
}

func TestRange_ExtremeGeometry(t *testing.T) {
	nan, inf := math.NaN(), math.Inf(1)

	viewports := []Viewport{
		{Items: 10, ItemHeight: nan, ContainerHeight: 800, Overscan: 2},
		{Items: 10, ItemHeight: inf, ContainerHeight: 800, Overscan: 2},
		{Items: 10, ItemHeight: 40, ContainerHeight: 1e300, Overscan: 2},
		{Items: 10, ItemHeight: 40, ContainerHeight: nan, Overscan: 2},
		{Items: 10, ItemHeight: 1e-300, ContainerHeight: 800, Overscan: 2},
		{Items: 10, ItemHeight: 40, ContainerHeight: 800, Overscan: math.MaxInt64 / 2},
		{Items: 10, ItemHeight: 40, ContainerHeight: 800, Overscan: math.MaxInt},
	}
	offsets := []float64{0, 120, -5, nan, inf, -inf, 1e300}

	for _, v := range viewports {
		for _, y := range offsets {
			w := v.Range(y)
			require.GreaterOrEqual(t, w.Start, 0, "%+v y=%v", v, y)
			require.LessOrEqual(t, w.End, v.Items, "%+v y=%v", v, y)
			require.LessOrEqual(t, w.Start, w.End, "%+v y=%v", v, y)
			require.LessOrEqual(t, w.Len(), v.MaxLen(), "%+v y=%v", v, y)
		}
	}

	assert.Equal(t, Window{Start: 0, End: 10}, Viewport{Items: 10, ItemHeight: 40, ContainerHeight: 1e300}.Range(0))
	assert.Equal(t, Window{}, Viewport{Items: 10, ItemHeight: nan, ContainerHeight: 800}.Range(0))

	grids := []Grid{
		{Items: 100, Columns: 4, ItemHeight: nan, ContainerHeight: 800, BufferRows: 2},
		{Items: 100, Columns: 4, ItemHeight: 400, Gap: nan, ContainerHeight: 800},
		{Items: 100, Columns: 4, ItemHeight: 400, ContainerHeight: 1e300, BufferRows: math.MaxInt},
		{Items: 100, Columns: math.MaxInt, ItemHeight: 400, ContainerHeight: 800},
	}
	for _, g := range grids {
		for _, y := range offsets {
			w := g.Range(y)
			require.GreaterOrEqual(t, w.Start, 0, "%+v y=%v", g, y)
			require.LessOrEqual(t, w.End, g.Items, "%+v y=%v", g, y)
			require.LessOrEqual(t, w.Start, w.End, "%+v y=%v", g, y)
		}
	}
}

func TestSlice(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	got := Slice(items, Window{Start: 1, End: 3})
	assert.Equal(t, []Indexed[string]{{Index: 1, Item: "b"}, {Index: 2, Item: "c"}}, got)

	assert.Len(t, Slice(items, Window{Start: 3, End: 99}), 2)
	assert.Empty(t, Slice(items, Window{Start: 9, End: 12}))
	assert.Empty(t, Slice(items, Window{Start: 4, End: 2}))
}

func TestGridRange(t *testing.T) {
	g := Grid{Items: 100, Columns: 4, ItemHeight: 400, Gap: 24, ContainerHeight: 800, BufferRows: 2}

	assert.Equal(t, 25, g.Rows())
	assert.Equal(t, float64(25*424), g.TotalHeight())

	w := g.Range(0)
	// ceil(800/424)=2 visible rows + 2 buffer rows = 4 rows of 4
	assert.Equal(t, Window{Start: 0, End: 16}, w)

	w = g.Range(424 * 10)
	assert.Equal(t, Window{Start: 40, End: 56}, w)
	assert.Equal(t, float64(4240), g.Offset(w))

	w = g.Range(424 * 24)
	assert.Equal(t, Window{Start: 96, End: 100}, w)

	assert.Equal(t, Window{}, Grid{Items: 10}.Range(0))
}
