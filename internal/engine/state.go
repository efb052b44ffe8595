package engine

import "github.com/zfe-tiles/server/internal/viewport"

// State is a read-only snapshot of the view, reported by the view endpoint
// and used to key rendered frames.
type State struct {
	Generation string          `json:"generation,omitempty"`
	Index      string          `json:"index"`
	Basemap    Basemap         `json:"basemap"`
	Zoom       float64         `json:"zoom"`
	Pan        viewport.Point  `json:"pan"`
	ZoomLevel  int             `json:"zoom_level"`
	Limits     viewport.Limits `json:"limits"`
	Dragging   bool            `json:"dragging"`
	HitPolicy  string          `json:"hit_policy"`
	Hovered    string          `json:"hovered,omitempty"`
	Selected   string          `json:"selected,omitempty"`
	ZoneSize   int             `json:"zone_size"`
	Cursor     *viewport.Point `json:"cursor,omitempty"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
}

// State captures the current view.
func (e *Engine) State() State {
	s := State{
		Index:     e.field.String(),
		Basemap:   e.basemap,
		Zoom:      e.transform.Zoom(),
		Pan:       e.transform.Pan(),
		ZoomLevel: e.transform.ZoomLevel(),
		Limits:    e.transform.Limits(),
		Dragging:  e.transform.Dragging(),
		HitPolicy: e.cfg.HitPolicy.String(),
		Hovered:   e.hovered,
		Selected:  e.selected,
		ZoneSize:  len(e.Zone()),
		Width:     e.cfg.Width,
		Height:    e.cfg.Height,
	}
	if e.ds != nil {
		s.Generation = e.ds.Generation()
	}
	if e.hasCursor {
		c := e.cursor
		s.Cursor = &c
	}
	return s
}
