// Package engine owns the interactive map state of one view: the installed
// dataset, the displayed index, the viewport transform and the hover and
// selection references. Every change is followed by a full re-derivation of
// the scene; nothing is diffed against the previous frame.
//
// An Engine is not safe for concurrent use. Callers serialize events.
package engine

import (
	"errors"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/zfe-tiles/server/internal/data/cells"
	"github.com/zfe-tiles/server/internal/spatial"
	"github.com/zfe-tiles/server/internal/viewport"
)

var (
	// ErrUnknownIndex is returned when the requested field is not a normalized composite index.
	ErrUnknownIndex = errors.New("engine: unknown index")
	// ErrUnknownBasemap is returned for basemap names outside the supported set.
	ErrUnknownBasemap = errors.New("engine: unknown basemap")
	// ErrNotEditable is returned when a variable cannot be edited.
	ErrNotEditable = errors.New("engine: variable is not editable")
	// ErrNoData is returned by operations that need an installed dataset.
	ErrNoData = errors.New("engine: no dataset installed")
)

// Basemap selects the background style.
type Basemap string

const (
	BasemapOSM       Basemap = "osm"
	BasemapEsri      Basemap = "esri"
	BasemapSatellite Basemap = "satellite"
	BasemapTopo      Basemap = "topo"
)

// Basemaps lists the supported styles.
var Basemaps = []Basemap{BasemapOSM, BasemapEsri, BasemapSatellite, BasemapTopo}

// ParseBasemap validates a basemap name. The empty string is osm.
func ParseBasemap(s string) (Basemap, error) {
	if s == "" {
		return BasemapOSM, nil
	}
	for _, b := range Basemaps {
		if string(b) == s {
			return b, nil
		}
	}
	return "", eris.Wrapf(ErrUnknownBasemap, "engine: basemap %q", s)
}

// Config holds the view settings.
type Config struct {
	Width           int
	Height          int
	Limits          viewport.Limits
	HitRadius       float64
	HitPolicy       spatial.Policy
	ZoneThreshold   float64
	DefaultIndex    cells.Field
	Basemap         Basemap
	ZoomAboutCursor bool
}

// DefaultConfig returns the settings of the reference map view.
func DefaultConfig() Config {
	return Config{
		Width:         800,
		Height:        600,
		Limits:        viewport.Limits{Min: 0.5, Max: 3},
		HitRadius:     spatial.DefaultRadius,
		HitPolicy:     spatial.FirstInRadius,
		ZoneThreshold: spatial.DefaultZoneThreshold,
		DefaultIndex:  cells.FieldEWBN,
		Basemap:       BasemapOSM,
	}
}

// Notifier receives the collaborator notifications. Calls happen synchronously
// inside the event that caused them.
type Notifier interface {
	ZoomChanged(level int)
	SelectionChanged(set []*cells.Record)
	HoverChanged(r *cells.Record)
}

type nopNotifier struct{}

func (nopNotifier) ZoomChanged(int)                  {}
func (nopNotifier) SelectionChanged([]*cells.Record) {}
func (nopNotifier) HoverChanged(*cells.Record)       {}

// Engine is the render loop state of one view.
type Engine struct {
	cfg    Config
	notify Notifier
	logger *zap.Logger

	ds      *cells.Dataset
	world   viewport.World
	hasData bool

	field     cells.Field
	basemap   Basemap
	transform *viewport.Transform
	level     int

	// Hover and selection are weak references by cell id, resolved against
	// the installed dataset when read.
	hovered  string
	selected string
	zone     []string

	cursor    viewport.Point
	hasCursor bool

	hits *spatial.Index
}

// New creates an engine with no dataset. A nil notifier discards notifications.
func New(cfg Config, notify Notifier) *Engine {
	def := DefaultConfig()
	if cfg.Width <= 0 {
		cfg.Width = def.Width
	}
	if cfg.Height <= 0 {
		cfg.Height = def.Height
	}
	if !isIndex(cfg.DefaultIndex) {
		cfg.DefaultIndex = def.DefaultIndex
	}
	if cfg.Basemap == "" {
		cfg.Basemap = def.Basemap
	}
	if notify == nil {
		notify = nopNotifier{}
	}
	e := &Engine{
		cfg:       cfg,
		notify:    notify,
		logger:    zap.L().With(zap.String("component", "engine")),
		field:     cfg.DefaultIndex,
		basemap:   cfg.Basemap,
		transform: viewport.New(cfg.Limits),
	}
	e.level = e.transform.ZoomLevel()
	return e
}

// Config returns the settings the engine was built with, defaults applied.
func (e *Engine) Config() Config { return e.cfg }

// Install replaces the dataset. Hover and selection survive only for ids that
// still exist. The previous dataset is left untouched.
func (e *Engine) Install(ds *cells.Dataset) {
	e.install(ds)
	if e.hovered != "" && e.lookup(e.hovered) == nil {
		e.hovered = ""
		e.notify.HoverChanged(nil)
	}
	if e.selected != "" && e.lookup(e.selected) == nil {
		e.selected = ""
		e.zone = nil
	}
	e.notify.SelectionChanged(e.WorkingSet())
}

func (e *Engine) install(ds *cells.Dataset) {
	e.ds = ds
	e.hasData = false
	e.hits = nil
	if ds == nil {
		return
	}
	locs := make([]cells.Location, 0, len(ds.Located()))
	for _, i := range ds.Located() {
		l, _ := ds.At(i).Location()
		locs = append(locs, l)
	}
	e.world, e.hasData = viewport.NewWorld(float64(e.cfg.Width), float64(e.cfg.Height), locs)
	e.logger.Debug("dataset installed",
		zap.String("generation", ds.Generation()),
		zap.Int("records", ds.Len()),
		zap.Int("located", len(locs)))
}

// Dataset returns the installed dataset, nil before the first install.
func (e *Engine) Dataset() *cells.Dataset { return e.ds }

// Index returns the displayed field.
func (e *Engine) Index() cells.Field { return e.field }

// Basemap returns the background style.
func (e *Engine) Basemap() Basemap { return e.basemap }

// Transform exposes the viewport transform for read access.
func (e *Engine) Transform() *viewport.Transform { return e.transform }

// ZoomLevel returns the canvas zoom level.
func (e *Engine) ZoomLevel() int { return e.transform.ZoomLevel() }

// HitPolicy returns the active hit-testing policy.
func (e *Engine) HitPolicy() spatial.Policy { return e.cfg.HitPolicy }

// SetIndex changes the displayed index. Only normalized composite indices are
// accepted, since the palette classifies values on [0, 1].
func (e *Engine) SetIndex(f cells.Field) error {
	if !isIndex(f) {
		return eris.Wrapf(ErrUnknownIndex, "engine: field %s", f)
	}
	e.field = f
	return nil
}

// SetBasemap changes the background style. The empty name is osm.
func (e *Engine) SetBasemap(b Basemap) error {
	parsed, err := ParseBasemap(string(b))
	if err != nil {
		return err
	}
	e.basemap = parsed
	return nil
}

// SetVariable overwrites an editable variable on every record by installing a
// modified copy of the dataset. The working set falls back to the full
// collection; the selected marker stays.
func (e *Engine) SetVariable(f cells.Field, v float64) error {
	if e.ds == nil {
		return ErrNoData
	}
	variable, ok := cells.LookupVariable(f)
	if !ok || !variable.Editable {
		return eris.Wrapf(ErrNotEditable, "engine: field %s", f)
	}
	next, err := e.ds.WithValue(f, v)
	if err != nil {
		return eris.Wrap(err, "engine: set variable")
	}
	e.install(next)
	e.zone = nil
	e.notify.SelectionChanged(e.WorkingSet())
	return nil
}

// Hovered resolves the hovered record, nil when none.
func (e *Engine) Hovered() *cells.Record { return e.lookup(e.hovered) }

// Selected resolves the selected record, nil when none.
func (e *Engine) Selected() *cells.Record { return e.lookup(e.selected) }

// Zone resolves the selected neighborhood. Ids missing from the installed
// dataset are skipped.
func (e *Engine) Zone() []*cells.Record {
	if e.ds == nil || len(e.zone) == 0 {
		return nil
	}
	positions := make([]int, 0, len(e.zone))
	for _, id := range e.zone {
		if i, ok := e.ds.Lookup(id); ok {
			positions = append(positions, i)
		}
	}
	return e.ds.Subset(positions)
}

// WorkingSet returns the selected neighborhood when it is non-empty and the
// full collection otherwise.
func (e *Engine) WorkingSet() []*cells.Record {
	if zone := e.Zone(); len(zone) > 0 {
		return zone
	}
	if e.ds == nil {
		return nil
	}
	return e.ds.All()
}

// WorkingPositions returns the dataset positions of the working set, sorted.
// nil means the full collection.
func (e *Engine) WorkingPositions() []int {
	if e.ds == nil || len(e.zone) == 0 {
		return nil
	}
	positions := make([]int, 0, len(e.zone))
	for _, id := range e.zone {
		if i, ok := e.ds.Lookup(id); ok {
			positions = append(positions, i)
		}
	}
	if len(positions) == 0 {
		return nil
	}
	sort.Ints(positions)
	return positions
}

func (e *Engine) lookup(id string) *cells.Record {
	if id == "" || e.ds == nil {
		return nil
	}
	i, ok := e.ds.Lookup(id)
	if !ok {
		return nil
	}
	return e.ds.At(i)
}

func isIndex(f cells.Field) bool {
	for _, idx := range cells.Indices {
		if idx.Normalized == f {
			return true
		}
	}
	return false
}
