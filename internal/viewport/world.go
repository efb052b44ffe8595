package viewport

import (
	"github.com/twpayne/go-geom"

	"github.com/zfe-tiles/server/internal/data/cells"
)

// Margin expands the data extent on each side, as a fraction of its span.
const Margin = 0.1

// minSpan replaces a zero-width extent (one point, or points on a line) so the
// mapping stays finite. In degrees.
const minSpan = 0.002

// World linearly maps (lng, lat) into a width×height rectangle, north up.
type World struct {
	Width, Height float64

	minLng, maxLng float64
	minLat, maxLat float64
}

// Extent returns the bounds of the given locations as (lng, lat) XY bounds.
func Extent(locs []cells.Location) *geom.Bounds {
	b := geom.NewBounds(geom.XY)
	for _, l := range locs {
		b.Extend(geom.NewPointFlat(geom.XY, []float64{l.Lng, l.Lat}))
	}
	return b
}

// NewWorld fits the padded extent into the rectangle. ok is false when locs is
// empty.
func NewWorld(width, height float64, locs []cells.Location) (World, bool) {
	if len(locs) == 0 {
		return World{}, false
	}
	b := Extent(locs)
	minLng, maxLng := widen(b.Min(0), b.Max(0))
	minLat, maxLat := widen(b.Min(1), b.Max(1))

	lngPad := (maxLng - minLng) * Margin
	latPad := (maxLat - minLat) * Margin
	return World{
		Width:  width,
		Height: height,
		minLng: minLng - lngPad,
		maxLng: maxLng + lngPad,
		minLat: minLat - latPad,
		maxLat: maxLat + latPad,
	}, true
}

func widen(lo, hi float64) (float64, float64) {
	if hi > lo {
		return lo, hi
	}
	mid := (lo + hi) / 2
	return mid - minSpan/2, mid + minSpan/2
}

// Bounds returns the padded extent as (lng, lat) XY bounds.
func (w World) Bounds() *geom.Bounds {
	return geom.NewBounds(geom.XY).Set(w.minLng, w.minLat, w.maxLng, w.maxLat)
}

// ToWorld maps a location into the rectangle.
func (w World) ToWorld(l cells.Location) Point {
	return Point{
		X: (l.Lng - w.minLng) / (w.maxLng - w.minLng) * w.Width,
		Y: w.Height - (l.Lat-w.minLat)/(w.maxLat-w.minLat)*w.Height,
	}
}

// FromWorld is the inverse of ToWorld.
func (w World) FromWorld(p Point) cells.Location {
	return cells.Location{
		Lng: w.minLng + p.X/w.Width*(w.maxLng-w.minLng),
		Lat: w.minLat + (w.Height-p.Y)/w.Height*(w.maxLat-w.minLat),
	}
}
