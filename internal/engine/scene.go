package engine

import (
	"fmt"
	"math"

	"github.com/zfe-tiles/server/internal/data/cells"
	"github.com/zfe-tiles/server/internal/viewport"
	"github.com/zfe-tiles/server/pkg/colormap"
)

// Marker geometry in pixels.
const (
	MarkerRadius  = 6.0
	HoverRadius   = 8.0
	SelectedWidth = 2.0
	// CullMargin keeps markers slightly outside the surface so partially
	// visible discs are still drawn.
	CullMargin = 20.0
)

// Title is drawn in the top-left corner of every frame.
const Title = "Low Emission Zone - Grenoble Metropole"

// Marker is one drawable cell.
type Marker struct {
	ID       string          `json:"id"`
	X        float64         `json:"x"`
	Y        float64         `json:"y"`
	Radius   float64         `json:"radius"`
	Bucket   colormap.Bucket `json:"bucket"`
	Value    float64         `json:"value"`
	Hovered  bool            `json:"hovered"`
	Selected bool            `json:"selected"`
}

// Tooltip is the hover card, anchored above and right of the cursor.
type Tooltip struct {
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Title string   `json:"title"`
	Lines []string `json:"lines"`
}

// Scene is everything a renderer needs to draw one surface.
type Scene struct {
	Width   int                   `json:"width"`
	Height  int                   `json:"height"`
	Basemap Basemap               `json:"basemap"`
	Field   string                `json:"field"`
	Title   string                `json:"title,omitempty"`
	Markers []Marker              `json:"markers"`
	Legend  []colormap.LegendItem `json:"legend,omitempty"`
	Tooltip *Tooltip              `json:"tooltip,omitempty"`
}

// Scene derives the canvas frame from the current state: project every
// located record, skip missing values, cull, classify, then attach the legend
// and the tooltip of the hovered record.
func (e *Engine) Scene() Scene {
	s := Scene{
		Width:   e.cfg.Width,
		Height:  e.cfg.Height,
		Basemap: e.basemap,
		Field:   e.field.String(),
		Title:   Title,
		Legend:  colormap.Legend(),
	}
	canvas, ok := e.Canvas()
	if !ok {
		s.Markers = []Marker{}
		return s
	}
	s.Markers = e.markers(canvas, float64(e.cfg.Width), float64(e.cfg.Height))
	s.Tooltip = e.tooltip()
	return s
}

// TileScene derives the markers of one map tile through the Web-Mercator
// projector. Tiles carry no chrome; the client composes legend and tooltip.
func (e *Engine) TileScene(z, x, y int) Scene {
	s := Scene{
		Width:   viewport.TileSize,
		Height:  viewport.TileSize,
		Basemap: e.basemap,
		Field:   e.field.String(),
		Markers: []Marker{},
	}
	if e.ds == nil {
		return s
	}
	s.Markers = e.markers(viewport.ForTile(z, x, y), viewport.TileSize, viewport.TileSize)
	return s
}

func (e *Engine) markers(proj viewport.Projector, w, h float64) []Marker {
	out := make([]Marker, 0, len(e.ds.Located()))
	for _, pos := range e.ds.Located() {
		r := e.ds.At(pos)
		v := r.Value(e.field)
		bucket, ok := colormap.Classify(v)
		if !ok {
			continue
		}
		l, _ := r.Location()
		p := proj.Project(l)
		if p.X < -CullMargin || p.X > w+CullMargin || p.Y < -CullMargin || p.Y > h+CullMargin {
			continue
		}
		m := Marker{
			ID:       r.ID(),
			X:        p.X,
			Y:        p.Y,
			Radius:   MarkerRadius,
			Bucket:   bucket,
			Value:    v,
			Hovered:  e.hovered != "" && r.ID() == e.hovered,
			Selected: e.selected != "" && r.ID() == e.selected,
		}
		if m.Hovered {
			m.Radius = HoverRadius
		}
		out = append(out, m)
	}
	return out
}

func (e *Engine) tooltip() *Tooltip {
	r := e.Hovered()
	if r == nil || !e.hasCursor {
		return nil
	}
	t := &Tooltip{
		X:     e.cursor.X + 10,
		Y:     e.cursor.Y - 10,
		Title: "Cell " + r.ID(),
		Lines: []string{
			fmt.Sprintf("%s: %s", e.field, format(r.Value(e.field), 3)),
			fmt.Sprintf("Households: %s", format(r.Value(cells.FieldMen), 1)),
			fmt.Sprintf("Individuals: %s", format(r.Value(cells.FieldInd), 0)),
			fmt.Sprintf("Vulnerable households: %s", format(r.Value(cells.FieldMenPauv), 1)),
		},
	}
	if l, ok := r.Location(); ok {
		t.Lines = append(t.Lines, fmt.Sprintf("Coordinates: %.4f, %.4f", l.Lat, l.Lng))
	}
	return t
}

func format(v float64, decimals int) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.*f", decimals, v)
}
