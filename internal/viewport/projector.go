package viewport

import (
	"math"

	"github.com/zfe-tiles/server/internal/data/cells"
)

// Projector places locations on a drawing surface and reports its zoom level.
type Projector interface {
	Project(l cells.Location) Point
	ZoomLevel() int
}

// Canvas projects through the world mapping, then the zoom/pan transform.
type Canvas struct {
	World     World
	Transform *Transform
}

// Project maps a location to canvas pixels.
func (c Canvas) Project(l cells.Location) Point {
	return c.Transform.Project(c.World.ToWorld(l))
}

// ZoomLevel returns round(8 + zoom*4).
func (c Canvas) ZoomLevel() int {
	return c.Transform.ZoomLevel()
}

// TileSize is the edge of a web map tile in pixels.
const TileSize = 256

// Mercator projects into Web-Mercator pixel space at a fixed tile zoom level,
// shifted so Origin lands on (0, 0). It stands in for an external tile
// provider's projection.
type Mercator struct {
	Level  int
	Origin Point
}

// Project maps a location to pixels relative to Origin.
func (m Mercator) Project(l cells.Location) Point {
	p := MercatorPixel(l, m.Level)
	return Point{X: p.X - m.Origin.X, Y: p.Y - m.Origin.Y}
}

// ZoomLevel returns the native tile zoom level.
func (m Mercator) ZoomLevel() int { return m.Level }

// ForTile returns the projector whose origin is the top-left corner of tile x/y.
func ForTile(z, x, y int) Mercator {
	return Mercator{Level: z, Origin: Point{X: float64(x * TileSize), Y: float64(y * TileSize)}}
}

// MercatorPixel returns the global pixel position of l at zoom level z.
func MercatorPixel(l cells.Location, z int) Point {
	scale := float64(TileSize) * math.Exp2(float64(z))
	lat := l.Lat * math.Pi / 180
	return Point{
		X: (l.Lng + 180) / 360 * scale,
		Y: (1 - math.Log(math.Tan(lat)+1/math.Cos(lat))/math.Pi) / 2 * scale,
	}
}
