package cells

import (
	"regexp"
	"strconv"

	"github.com/twpayne/go-geom"
)

// Calibration of the local linear approximation for the Grenoble grid.
// Not a CRS transform: one degree of latitude is taken as kLat meters and one
// degree of longitude as kLng meters around the reference point.
const (
	refLat      = 45.1885
	refLng      = 5.7245
	refNorthing = 2469000
	refEasting  = 3982000
	kLat        = 111000.0
	kLng        = 85000.0
)

var cellIDPattern = regexp.MustCompile(`N(\d+)E(\d+)`)

// Location is a derived latitude/longitude pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Coord returns the location as an XY coordinate (lng, lat).
func (l Location) Coord() geom.Coord {
	return geom.Coord{l.Lng, l.Lat}
}

// Locate derives a location from a cell identifier such as
// "CRS3035RES200mN2469200E3982600". The first N<digits>E<digits> match is used.
func Locate(cellID string) (Location, bool) {
	m := cellIDPattern.FindStringSubmatch(cellID)
	if m == nil {
		return Location{}, false
	}
	northing, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return Location{}, false
	}
	easting, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return Location{}, false
	}
	return Location{
		Lat: refLat + float64(northing-refNorthing)/kLat,
		Lng: refLng + float64(easting-refEasting)/kLng,
	}, true
}
