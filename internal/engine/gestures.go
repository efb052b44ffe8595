package engine

import (
	"go.uber.org/zap"

	"github.com/zfe-tiles/server/internal/data/cells"
	"github.com/zfe-tiles/server/internal/spatial"
	"github.com/zfe-tiles/server/internal/viewport"
)

// Wheel zooms by one notch. deltaY > 0 zooms out. With ZoomAboutCursor the
// point under the cursor stays fixed, except during a drag, which owns the pan.
func (e *Engine) Wheel(cursor viewport.Point, deltaY float64) bool {
	factor := viewport.WheelFactor(deltaY)
	var changed bool
	if e.cfg.ZoomAboutCursor && !e.transform.Dragging() {
		changed = e.transform.ZoomAbout(factor, cursor)
	} else {
		changed = e.transform.ZoomBy(factor)
	}
	e.afterTransform(changed)
	return changed
}

// ZoomIn applies the zoom-in button factor.
func (e *Engine) ZoomIn() bool {
	changed := e.transform.ZoomBy(viewport.ButtonIn)
	e.afterTransform(changed)
	return changed
}

// ZoomOut applies the zoom-out button factor.
func (e *Engine) ZoomOut() bool {
	changed := e.transform.ZoomBy(viewport.ButtonOut)
	e.afterTransform(changed)
	return changed
}

// ResetView restores zoom 1 and no pan. It is refused during a drag.
func (e *Engine) ResetView() bool {
	changed := e.transform.Reset()
	e.afterTransform(changed)
	return changed
}

// PointerDown starts a drag at p.
func (e *Engine) PointerDown(p viewport.Point) {
	e.cursor, e.hasCursor = p, true
	e.transform.BeginDrag(p)
}

// PointerMove pans while dragging and hit-tests otherwise. Hover is frozen
// for the duration of a drag.
func (e *Engine) PointerMove(p viewport.Point) {
	e.cursor, e.hasCursor = p, true
	if e.transform.Dragging() {
		e.afterTransform(e.transform.DragTo(p))
		return
	}
	e.setHovered(e.hitCanvas(p))
}

// PointerUp ends a drag.
func (e *Engine) PointerUp() {
	e.transform.EndDrag()
}

// PointerLeave ends a drag and clears the hover.
func (e *Engine) PointerLeave() {
	e.transform.EndDrag()
	e.hasCursor = false
	e.setHovered("")
}

// Click selects the point under p and the neighborhood around it. A click
// that hits nothing clears the selection.
func (e *Engine) Click(p viewport.Point) *cells.Record {
	e.cursor, e.hasCursor = p, true
	return e.selectID(e.hitCanvas(p))
}

// HoverWith hit-tests with an external projector, such as the tile surface.
func (e *Engine) HoverWith(proj viewport.Projector, cursor viewport.Point) *cells.Record {
	e.setHovered(e.hitWith(proj, cursor))
	return e.Hovered()
}

// ClickWith selects with an external projector.
func (e *Engine) ClickWith(proj viewport.Projector, cursor viewport.Point) *cells.Record {
	return e.selectID(e.hitWith(proj, cursor))
}

// Canvas returns the canvas projector. ok is false until a dataset with at
// least one located record is installed.
func (e *Engine) Canvas() (viewport.Canvas, bool) {
	return viewport.Canvas{World: e.world, Transform: e.transform}, e.hasData
}

func (e *Engine) afterTransform(changed bool) {
	if !changed {
		return
	}
	e.hits = nil
	if level := e.transform.ZoomLevel(); level != e.level {
		e.level = level
		e.notify.ZoomChanged(level)
	}
}

func (e *Engine) tester() spatial.HitTester {
	return spatial.HitTester{Radius: e.cfg.HitRadius, Policy: e.cfg.HitPolicy}
}

// candidates projects every located record; Key is the dataset position.
func (e *Engine) candidates(proj viewport.Projector) []spatial.Candidate {
	located := e.ds.Located()
	cands := make([]spatial.Candidate, len(located))
	for i, pos := range located {
		l, _ := e.ds.At(pos).Location()
		cands[i] = spatial.Candidate{Key: pos, Screen: proj.Project(l)}
	}
	return cands
}

// hitCanvas returns the id of the record under p on the canvas, "" on a miss.
// The bucket index is rebuilt lazily after the dataset or transform changes.
func (e *Engine) hitCanvas(p viewport.Point) string {
	canvas, ok := e.Canvas()
	if !ok {
		return ""
	}
	if e.hits == nil {
		e.hits = spatial.NewIndex(e.tester(), e.candidates(canvas))
	}
	i, hit := e.hits.Find(p)
	if !hit {
		return ""
	}
	return e.ds.At(e.hits.Key(i)).ID()
}

func (e *Engine) hitWith(proj viewport.Projector, cursor viewport.Point) string {
	if e.ds == nil {
		return ""
	}
	cands := e.candidates(proj)
	i, hit := e.tester().Find(cursor, cands)
	if !hit {
		return ""
	}
	return e.ds.At(cands[i].Key).ID()
}

func (e *Engine) setHovered(id string) {
	if id == e.hovered {
		return
	}
	e.hovered = id
	e.notify.HoverChanged(e.Hovered())
}

func (e *Engine) selectID(id string) *cells.Record {
	if id == "" {
		if e.selected == "" && len(e.zone) == 0 {
			return nil
		}
		e.selected, e.zone = "", nil
		e.notify.SelectionChanged(e.WorkingSet())
		return nil
	}

	anchor := e.lookup(id)
	loc, _ := anchor.Location()
	positions := spatial.SelectZone(e.ds, loc, e.cfg.ZoneThreshold)
	zone := make([]string, len(positions))
	for i, pos := range positions {
		zone[i] = e.ds.At(pos).ID()
	}
	e.selected, e.zone = id, zone
	e.logger.Debug("zone selected", zap.String("anchor", id), zap.Int("cells", len(zone)))
	e.notify.SelectionChanged(e.WorkingSet())
	return anchor
}
