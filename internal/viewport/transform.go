// Package viewport maps cell locations to screen pixels: the world mapping of
// the data extent, the zoom/pan transform on top of it, and the projectors
// that combine them.
package viewport

import "math"

// Zoom factors per gesture.
const (
	WheelIn   = 1.1
	WheelOut  = 0.9
	ButtonIn  = 1.2
	ButtonOut = 0.8
)

// Point is a 2D position in world or screen pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Limits bounds the zoom factor. A zero bound is open on that side.
type Limits struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (l Limits) clamp(z float64) float64 {
	if l.Min > 0 && z < l.Min {
		z = l.Min
	}
	if l.Max > 0 && z > l.Max {
		z = l.Max
	}
	return z
}

// Transform is the zoom/pan state. The zero value is not usable; use New.
type Transform struct {
	zoom   float64
	pan    Point
	limits Limits

	dragging bool
	last     Point
}

// New returns an identity transform bounded by limits.
func New(limits Limits) *Transform {
	return &Transform{zoom: limits.clamp(1), limits: limits}
}

// Zoom returns the zoom factor.
func (t *Transform) Zoom() float64 { return t.zoom }

// Pan returns the pan offset in pixels.
func (t *Transform) Pan() Point { return t.pan }

// Limits returns the zoom bounds.
func (t *Transform) Limits() Limits { return t.limits }

// Project maps a world point to the screen.
func (t *Transform) Project(w Point) Point {
	return Point{X: w.X*t.zoom + t.pan.X, Y: w.Y*t.zoom + t.pan.Y}
}

// Unproject maps a screen point back to the world.
func (t *Transform) Unproject(s Point) Point {
	return Point{X: (s.X - t.pan.X) / t.zoom, Y: (s.Y - t.pan.Y) / t.zoom}
}

// ZoomBy multiplies the zoom by factor and clamps it. Non-positive and NaN
// factors are ignored. It reports whether the zoom changed.
func (t *Transform) ZoomBy(factor float64) bool {
	if !(factor > 0) || math.IsInf(factor, 0) {
		return false
	}
	next := t.limits.clamp(t.zoom * factor)
	if next == t.zoom {
		return false
	}
	t.zoom = next
	return true
}

// ZoomAbout zooms like ZoomBy and keeps the world point under cursor fixed.
func (t *Transform) ZoomAbout(factor float64, cursor Point) bool {
	anchor := t.Unproject(cursor)
	if !t.ZoomBy(factor) {
		return false
	}
	t.pan = Point{X: cursor.X - anchor.X*t.zoom, Y: cursor.Y - anchor.Y*t.zoom}
	return true
}

// PanBy translates the view. Refused while a drag owns the pan.
func (t *Transform) PanBy(dx, dy float64) bool {
	if t.dragging {
		return false
	}
	t.pan.X += dx
	t.pan.Y += dy
	return true
}

// Reset restores zoom 1 and no pan. Refused while a drag owns the pan.
func (t *Transform) Reset() bool {
	if t.dragging {
		return false
	}
	t.zoom = t.limits.clamp(1)
	t.pan = Point{}
	return true
}

// BeginDrag takes ownership of the pan until EndDrag.
func (t *Transform) BeginDrag(p Point) {
	t.dragging = true
	t.last = p
}

// DragTo pans by the delta from the previous sample. It is a no-op when no
// drag is active.
func (t *Transform) DragTo(p Point) bool {
	if !t.dragging {
		return false
	}
	t.pan.X += p.X - t.last.X
	t.pan.Y += p.Y - t.last.Y
	t.last = p
	return true
}

// EndDrag releases the pan.
func (t *Transform) EndDrag() { t.dragging = false }

// Dragging reports whether a drag is in progress.
func (t *Transform) Dragging() bool { return t.dragging }

// ZoomLevel converts the zoom factor to a map-like level.
func (t *Transform) ZoomLevel() int {
	return int(math.Round(8 + t.zoom*4))
}

// WheelFactor returns the zoom factor of one wheel notch.
func WheelFactor(deltaY float64) float64 {
	if deltaY > 0 {
		return WheelOut
	}
	return WheelIn
}
