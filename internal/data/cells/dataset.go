package cells

import (
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// Dataset is an immutable collection of cell records.
type Dataset struct {
	generation string
	records    []Record
	byID       map[string]int
	located    []int
}

// NewDataset wraps records and assigns a fresh generation id.
// When ids repeat, lookups resolve to the first occurrence.
func NewDataset(records []Record) *Dataset {
	d := &Dataset{
		generation: uuid.NewString(),
		records:    records,
		byID:       make(map[string]int, len(records)),
	}
	for i := range d.records {
		r := &d.records[i]
		if _, dup := d.byID[r.id]; !dup {
			d.byID[r.id] = i
		}
		if r.hasLoc {
			d.located = append(d.located, i)
		}
	}
	return d
}

// Generation identifies this dataset instance.
func (d *Dataset) Generation() string { return d.generation }

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.records) }

// At returns the record at position i.
func (d *Dataset) At(i int) *Record { return &d.records[i] }

// Lookup resolves a cell id to its position.
func (d *Dataset) Lookup(id string) (int, bool) {
	i, ok := d.byID[id]
	return i, ok
}

// Located returns the positions of records that carry a location, in dataset order.
func (d *Dataset) Located() []int { return d.located }

// All returns every record.
func (d *Dataset) All() []*Record {
	out := make([]*Record, len(d.records))
	for i := range d.records {
		out[i] = &d.records[i]
	}
	return out
}

// Subset returns the records at the given positions.
func (d *Dataset) Subset(positions []int) []*Record {
	out := make([]*Record, 0, len(positions))
	for _, i := range positions {
		if i >= 0 && i < len(d.records) {
			out = append(out, &d.records[i])
		}
	}
	return out
}

// WithValue returns a new dataset where f is set to v on every record.
func (d *Dataset) WithValue(f Field, v float64) (*Dataset, error) {
	if !f.Valid() {
		return nil, eris.Errorf("cells: invalid field %d", f)
	}
	records := make([]Record, len(d.records))
	for i := range d.records {
		records[i] = d.records[i].withValue(f, v)
	}
	return NewDataset(records), nil
}
