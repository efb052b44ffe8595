// Package spatial implements hit-testing of projected cells and neighborhood
// selection around a clicked cell.
package spatial

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/zfe-tiles/server/internal/viewport"
)

// DefaultRadius is the hit radius in pixels.
const DefaultRadius = 10.0

// Policy decides which candidate wins when several lie within the radius.
type Policy int

const (
	// FirstInRadius returns the first candidate in iteration order.
	FirstInRadius Policy = iota
	// ClosestInRadius returns the closest candidate; ties go to the earlier one.
	ClosestInRadius
)

func (p Policy) String() string {
	switch p {
	case ClosestInRadius:
		return "closest"
	default:
		return "first"
	}
}

// ParsePolicy resolves "first" or "closest". The empty string is "first".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "first":
		return FirstInRadius, nil
	case "closest":
		return ClosestInRadius, nil
	}
	return FirstInRadius, eris.Errorf("spatial: unknown hit policy %q", s)
}

// Candidate is a projected point. Key identifies it to the caller.
type Candidate struct {
	Key    int
	Screen viewport.Point
}

// HitTester finds the candidate under a cursor.
type HitTester struct {
	Radius float64
	Policy Policy
}

func (h HitTester) radius() float64 {
	if h.Radius > 0 {
		return h.Radius
	}
	return DefaultRadius
}

// Find scans candidates in order and returns the position of the winner in
// the slice. A candidate hits when its distance is strictly below the radius.
func (h HitTester) Find(cursor viewport.Point, cands []Candidate) (int, bool) {
	r := h.radius()
	best, bestDist := -1, math.Inf(1)
	for i, c := range cands {
		d := distance(cursor, c.Screen)
		if d >= r {
			continue
		}
		if h.Policy == FirstInRadius {
			return i, true
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, best >= 0
}

func distance(a, b viewport.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
