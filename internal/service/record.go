package service

import (
	"github.com/zfe-tiles/server/internal/data/cells"
)

// RecordView is the JSON form of a cell record. Missing values are omitted.
type RecordView struct {
	ID       string             `json:"id"`
	Location *cells.Location    `json:"location,omitempty"`
	Values   map[string]float64 `json:"values"`
}

// NewRecordView converts r, nil for nil.
func NewRecordView(r *cells.Record) *RecordView {
	if r == nil {
		return nil
	}
	v := &RecordView{ID: r.ID(), Values: make(map[string]float64)}
	if loc, ok := r.Location(); ok {
		v.Location = &loc
	}
	for i := 0; i < cells.NumFields; i++ {
		f := cells.Field(i)
		if r.Has(f) {
			v.Values[f.String()] = r.Value(f)
		}
	}
	return v
}

// SelectionView reports the selected cell and the working set it produced.
type SelectionView struct {
	Selected   *RecordView `json:"selected"`
	ZoneSize   int         `json:"zone_size"`
	WorkingSet int         `json:"working_set"`
	ZoneIDs    []string    `json:"zone_ids"`
}
