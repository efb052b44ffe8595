package viewport

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zfe-tiles/server/internal/data/cells"
)

func TestTransform_ProjectRoundTrip(t *testing.T) {
	tr := New(Limits{})
	tr.ZoomBy(2)
	tr.PanBy(10, -5)

	s := tr.Project(Point{X: 3, Y: 4})
	assert.Equal(t, Point{X: 16, Y: 3}, s)
	assert.Equal(t, Point{X: 3, Y: 4}, tr.Unproject(s))
}

func TestTransform_ZoomClampsAtMax(t *testing.T) {
	tr := New(Limits{Min: 0.5, Max: 3})

	prev := tr.Zoom()
	for i := 0; i < 5; i++ {
		tr.ZoomBy(WheelIn)
		assert.Greater(t, tr.Zoom(), prev)
		prev = tr.Zoom()
	}
	assert.InDelta(t, math.Pow(1.1, 5), tr.Zoom(), 1e-9)

	for i := 0; i < 20; i++ {
		tr.ZoomBy(WheelIn)
		assert.LessOrEqual(t, tr.Zoom(), 3.0)
	}
	assert.Equal(t, 3.0, tr.Zoom())
	assert.False(t, tr.ZoomBy(WheelIn), "zoom at max must not change")
}

func TestTransform_ZoomStaysInLimits(t *testing.T) {
	tr := New(Limits{Min: 0.5, Max: 3})
	for _, f := range []float64{0.1, -2, 0, math.NaN(), math.Inf(1), 100, 0.8, 1.2, -0.5} {
		tr.ZoomBy(f)
		assert.GreaterOrEqual(t, tr.Zoom(), 0.5, "factor %v", f)
		assert.LessOrEqual(t, tr.Zoom(), 3.0, "factor %v", f)
	}
}

func TestTransform_UnboundedByDefault(t *testing.T) {
	tr := New(Limits{})
	for i := 0; i < 30; i++ {
		tr.ZoomBy(ButtonIn)
	}
	assert.Greater(t, tr.Zoom(), 3.0)
}

func TestTransform_ZoomAboutKeepsCursorAnchor(t *testing.T) {
	tr := New(Limits{Min: 0.5, Max: 3})
	tr.PanBy(40, 20)
	cursor := Point{X: 200, Y: 150}
	before := tr.Unproject(cursor)

	require.True(t, tr.ZoomAbout(ButtonIn, cursor))
	after := tr.Unproject(cursor)
	assert.InDelta(t, before.X, after.X, 1e-9)
	assert.InDelta(t, before.Y, after.Y, 1e-9)
}

func TestTransform_DragOwnsPan(t *testing.T) {
	tr := New(Limits{})
	tr.BeginDrag(Point{X: 10, Y: 10})
	assert.True(t, tr.Dragging())

	assert.False(t, tr.PanBy(100, 100))
	assert.False(t, tr.Reset())

	tr.DragTo(Point{X: 15, Y: 8})
	tr.DragTo(Point{X: 25, Y: 8})
	assert.Equal(t, Point{X: 15, Y: -2}, tr.Pan())

	tr.EndDrag()
	assert.False(t, tr.DragTo(Point{X: 0, Y: 0}))
	assert.True(t, tr.Reset())
	assert.Equal(t, Point{}, tr.Pan())
	assert.Equal(t, 1.0, tr.Zoom())
}

func TestTransform_ZoomLevel(t *testing.T) {
	tr := New(Limits{Min: 0.5, Max: 3})
	assert.Equal(t, 12, tr.ZoomLevel())
	tr.ZoomBy(0.1)
	assert.Equal(t, 10, tr.ZoomLevel())
	tr.ZoomBy(100)
	assert.Equal(t, 20, tr.ZoomLevel())
}

func TestWheelFactor(t *testing.T) {
	assert.Equal(t, WheelOut, WheelFactor(120))
	assert.Equal(t, WheelIn, WheelFactor(-120))
	assert.Equal(t, WheelIn, WheelFactor(0))
}

func TestWorld_PaddedExtent(t *testing.T) {
	locs := []cells.Location{{Lat: 45, Lng: 5}, {Lat: 46, Lng: 7}}
	w, ok := NewWorld(1000, 500, locs)
	require.True(t, ok)

	b := w.Bounds()
	assert.InDelta(t, 4.8, b.Min(0), 1e-9)
	assert.InDelta(t, 7.2, b.Max(0), 1e-9)
	assert.InDelta(t, 44.9, b.Min(1), 1e-9)
	assert.InDelta(t, 46.1, b.Max(1), 1e-9)

	sw := w.ToWorld(locs[0])
	assert.InDelta(t, 1000*0.2/2.4, sw.X, 1e-9)
	assert.InDelta(t, 500-500*0.1/1.2, sw.Y, 1e-9)

	back := w.FromWorld(sw)
	assert.InDelta(t, locs[0].Lat, back.Lat, 1e-9)
	assert.InDelta(t, locs[0].Lng, back.Lng, 1e-9)
}

func TestWorld_NorthIsUp(t *testing.T) {
	w, ok := NewWorld(100, 100, []cells.Location{{Lat: 45, Lng: 5}, {Lat: 46, Lng: 6}})
	require.True(t, ok)
	north := w.ToWorld(cells.Location{Lat: 46, Lng: 5.5})
	south := w.ToWorld(cells.Location{Lat: 45, Lng: 5.5})
	assert.Less(t, north.Y, south.Y)
}

func TestWorld_DegenerateExtent(t *testing.T) {
	w, ok := NewWorld(200, 100, []cells.Location{{Lat: 45.19, Lng: 5.73}})
	require.True(t, ok)
	p := w.ToWorld(cells.Location{Lat: 45.19, Lng: 5.73})
	assert.InDelta(t, 100, p.X, 1e-6)
	assert.InDelta(t, 50, p.Y, 1e-6)

	_, ok = NewWorld(200, 100, nil)
	assert.False(t, ok)
}

func TestCanvasProjector(t *testing.T) {
	w, _ := NewWorld(100, 100, []cells.Location{{Lat: 45, Lng: 5}, {Lat: 46, Lng: 6}})
	tr := New(Limits{})
	tr.ZoomBy(2)
	c := Canvas{World: w, Transform: tr}

	l := cells.Location{Lat: 45.5, Lng: 5.5}
	assert.Equal(t, tr.Project(w.ToWorld(l)), c.Project(l))
	assert.Equal(t, 16, c.ZoomLevel())
}

func TestMercator(t *testing.T) {
	origin := MercatorPixel(cells.Location{Lat: 0, Lng: -180}, 0)
	assert.InDelta(t, 0, origin.X, 1e-9)
	assert.InDelta(t, 128, origin.Y, 1e-9)

	l := cells.Location{Lat: 45.1885, Lng: 5.7245}
	m := ForTile(12, 2113, 1461)
	global := MercatorPixel(l, 12)
	local := m.Project(l)
	assert.InDelta(t, global.X-2113*256, local.X, 1e-9)
	assert.InDelta(t, global.Y-1461*256, local.Y, 1e-9)
	assert.Equal(t, 12, m.ZoomLevel())
}
