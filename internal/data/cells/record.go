package cells

import "math"

// Record is one grid cell. Values are read-only once the record is built.
type Record struct {
	id     string
	values [numFields]float64
	loc    Location
	hasLoc bool
}

// NewRecord builds a record. Fields absent from values are missing (NaN).
// The location is derived from the id once, here.
func NewRecord(id string, values map[Field]float64) Record {
	r := Record{id: id}
	for i := range r.values {
		r.values[i] = math.NaN()
	}
	for f, v := range values {
		if f.Valid() {
			r.values[f] = v
		}
	}
	r.loc, r.hasLoc = Locate(id)
	return r
}

// ID returns the cell identifier.
func (r *Record) ID() string { return r.id }

// Value returns the value of f, NaN when missing.
func (r *Record) Value(f Field) float64 {
	if !f.Valid() {
		return math.NaN()
	}
	return r.values[f]
}

// Has reports whether f holds a numeric value.
func (r *Record) Has(f Field) bool {
	return !math.IsNaN(r.Value(f))
}

// Location returns the derived location; ok is false for non-spatial records.
func (r *Record) Location() (Location, bool) {
	return r.loc, r.hasLoc
}

// withValue returns a copy of r with f overwritten.
func (r *Record) withValue(f Field, v float64) Record {
	out := *r
	out.values[f] = v
	return out
}
