package spatial

import (
	"math"

	"github.com/zfe-tiles/server/internal/data/cells"
)

// DefaultZoneThreshold is the neighborhood radius in degrees, roughly 1km.
const DefaultZoneThreshold = 0.01

// SelectZone returns the positions of every located record whose planar
// distance in (lat, lng) degrees from the anchor is strictly below threshold.
// The distance ignores the latitude scaling of longitude, so the zone is an
// ellipse on the ground rather than a circle.
func SelectZone(ds *cells.Dataset, anchor cells.Location, threshold float64) []int {
	if threshold <= 0 {
		threshold = DefaultZoneThreshold
	}
	var out []int
	for _, i := range ds.Located() {
		loc, _ := ds.At(i).Location()
		if math.Hypot(loc.Lat-anchor.Lat, loc.Lng-anchor.Lng) < threshold {
			out = append(out, i)
		}
	}
	return out
}
