package service

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/zfe-tiles/server/internal/cache"
	"github.com/zfe-tiles/server/internal/data/cells"
	"github.com/zfe-tiles/server/internal/engine"
	"github.com/zfe-tiles/server/internal/render"
	"github.com/zfe-tiles/server/internal/stats"
	"github.com/zfe-tiles/server/internal/viewport"
)

// ErrBadRequest marks malformed event parameters.
var ErrBadRequest = errors.New("service: bad request")

// MaxTileZoom bounds the tile pyramid.
const MaxTileZoom = 22

// ViewServiceConfig contains view service configuration.
type ViewServiceConfig struct {
	ID       string
	Engine   engine.Config
	Data     *DataService
	Cache    *cache.Manager
	Renderer *render.Renderer
}

// ViewService drives one engine. Every event and read holds the view mutex,
// so the engine only ever sees one event at a time.
type ViewService struct {
	id       string
	created  time.Time
	cache    *cache.Manager
	renderer *render.Renderer
	logger   *zap.Logger
	detach   func()

	mu       sync.Mutex
	engine   *engine.Engine
	notified Notifications
}

// Notifications mirrors the last collaborator notifications of a view.
type Notifications struct {
	ZoomLevel     int    `json:"zoom_level"`
	WorkingSet    int    `json:"working_set"`
	Hovered       string `json:"hovered,omitempty"`
	SelectionSeen int    `json:"selection_events"`
}

// ViewState is the view endpoint payload.
type ViewState struct {
	ID string `json:"id"`
	engine.State
	Notified Notifications `json:"notified"`
}

// NewViewService creates a view and installs every dataset the data service
// loads.
func NewViewService(cfg ViewServiceConfig) *ViewService {
	v := &ViewService{
		id:       cfg.ID,
		created:  time.Now(),
		cache:    cfg.Cache,
		renderer: cfg.Renderer,
		logger:   zap.L().With(zap.String("component", "view"), zap.String("view", cfg.ID)),
	}
	v.engine = engine.New(cfg.Engine, viewNotifier{logger: v.logger, notified: &v.notified})
	v.notified.ZoomLevel = v.engine.ZoomLevel()
	if cfg.Data != nil {
		v.detach = cfg.Data.Subscribe(v.install)
	}
	return v
}

// Close stops installing new datasets into the view.
func (v *ViewService) Close() {
	if v.detach != nil {
		v.detach()
	}
}

// ID returns the view id.
func (v *ViewService) ID() string { return v.id }

// Created returns the creation time.
func (v *ViewService) Created() time.Time { return v.created }

func (v *ViewService) install(ds *cells.Dataset) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.engine.Install(ds)
}

// viewNotifier logs the engine notifications and records them for State.
// It runs inside engine events, with the view mutex already held.
type viewNotifier struct {
	logger   *zap.Logger
	notified *Notifications
}

func (n viewNotifier) ZoomChanged(level int) {
	n.notified.ZoomLevel = level
	n.logger.Debug("zoom level changed", zap.Int("level", level))
}

func (n viewNotifier) SelectionChanged(set []*cells.Record) {
	n.notified.WorkingSet = len(set)
	n.notified.SelectionSeen++
	n.logger.Debug("selection changed", zap.Int("working_set", len(set)))
}

func (n viewNotifier) HoverChanged(r *cells.Record) {
	n.notified.Hovered = ""
	if r != nil {
		n.notified.Hovered = r.ID()
	}
	n.logger.Debug("hover changed", zap.String("cell", n.notified.Hovered))
}

// State returns the view snapshot.
func (v *ViewService) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

func (v *ViewService) stateLocked() ViewState {
	return ViewState{ID: v.id, State: v.engine.State(), Notified: v.notified}
}

// Frame renders the canvas, from the image cache when the state was already
// drawn.
func (v *ViewService) Frame() ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.engine.Dataset() == nil {
		return nil, ErrNotReady
	}
	key := cache.FrameKey(v.engine.State())
	return v.cachedImage(key, func() ([]byte, error) {
		return v.renderer.RenderFrame(v.engine.Scene())
	})
}

// Tile renders map tile z/x/y.
func (v *ViewService) Tile(z, x, y int) ([]byte, error) {
	if err := validateTile(z, x, y); err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.engine.Dataset() == nil {
		return nil, ErrNotReady
	}
	key := cache.TileKey(z, x, y, v.engine.State())
	return v.cachedImage(key, func() ([]byte, error) {
		return v.renderer.RenderTile(v.engine.TileScene(z, x, y))
	})
}

func (v *ViewService) cachedImage(key string, draw func() ([]byte, error)) ([]byte, error) {
	if data, ok := v.cache.GetImage(key); ok {
		return data, nil
	}
	data, err := draw()
	if err != nil {
		return nil, eris.Wrap(err, "service: render")
	}
	if err := v.cache.SetImage(key, data); err != nil {
		v.logger.Warn("image not cached", zap.String("key", key), zap.Error(err))
	}
	return data, nil
}

func validateTile(z, x, y int) error {
	if z < 0 || z > MaxTileZoom {
		return eris.Wrapf(ErrBadRequest, "service: tile zoom %d", z)
	}
	n := 1 << z
	if x < 0 || x >= n || y < 0 || y >= n {
		return eris.Wrapf(ErrBadRequest, "service: tile %d/%d/%d out of range", z, x, y)
	}
	return nil
}

// SetIndex changes the displayed index by column name.
func (v *ViewService) SetIndex(name string) error {
	f, ok := cells.ParseField(name)
	if !ok {
		return eris.Wrapf(engine.ErrUnknownIndex, "service: field %q", name)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine.SetIndex(f)
}

// SetBasemap changes the background style.
func (v *ViewService) SetBasemap(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine.SetBasemap(engine.Basemap(name))
}

// Zoom applies a zoom button: in, out or reset.
func (v *ViewService) Zoom(action string) (ViewState, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch action {
	case "in":
		v.engine.ZoomIn()
	case "out":
		v.engine.ZoomOut()
	case "reset":
		v.engine.ResetView()
	default:
		return ViewState{}, eris.Wrapf(ErrBadRequest, "service: zoom action %q", action)
	}
	return v.stateLocked(), nil
}

// Wheel applies a wheel notch at cursor.
func (v *ViewService) Wheel(cursor viewport.Point, deltaY float64) (ViewState, error) {
	if !finite(cursor) || math.IsNaN(deltaY) {
		return ViewState{}, eris.Wrap(ErrBadRequest, "service: wheel event")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.engine.Wheel(cursor, deltaY)
	return v.stateLocked(), nil
}

// Pointer applies a pointer event: down, move, up or leave.
func (v *ViewService) Pointer(action string, p viewport.Point) (ViewState, error) {
	if !finite(p) {
		return ViewState{}, eris.Wrap(ErrBadRequest, "service: pointer position")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	switch action {
	case "down":
		v.engine.PointerDown(p)
	case "move":
		v.engine.PointerMove(p)
	case "up":
		v.engine.PointerUp()
	case "leave":
		v.engine.PointerLeave()
	default:
		return ViewState{}, eris.Wrapf(ErrBadRequest, "service: pointer action %q", action)
	}
	return v.stateLocked(), nil
}

// Click selects on the canvas.
func (v *ViewService) Click(p viewport.Point) (SelectionView, error) {
	if !finite(p) {
		return SelectionView{}, eris.Wrap(ErrBadRequest, "service: click position")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.engine.Click(p)
	return v.selectionLocked(), nil
}

// TilePointer hovers or clicks on the tile surface. p is in pixels inside
// tile z/x/y.
func (v *ViewService) TilePointer(action string, z, x, y int, p viewport.Point) (*RecordView, error) {
	if err := validateTile(z, x, y); err != nil {
		return nil, err
	}
	if !finite(p) {
		return nil, eris.Wrap(ErrBadRequest, "service: tile pointer position")
	}
	proj := viewport.ForTile(z, x, y)

	v.mu.Lock()
	defer v.mu.Unlock()
	switch action {
	case "hover":
		return NewRecordView(v.engine.HoverWith(proj, p)), nil
	case "click":
		return NewRecordView(v.engine.ClickWith(proj, p)), nil
	default:
		return nil, eris.Wrapf(ErrBadRequest, "service: tile pointer action %q", action)
	}
}

// SetVariable overwrites an editable variable on every record of this view.
func (v *ViewService) SetVariable(name string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return eris.Wrap(ErrBadRequest, "service: variable value must be finite")
	}
	f, ok := cells.ParseField(name)
	if !ok {
		return eris.Wrapf(engine.ErrNotEditable, "service: field %q", name)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.engine.Dataset() == nil {
		return ErrNotReady
	}
	return v.engine.SetVariable(f, value)
}

// Hover returns the hovered record, nil when none.
func (v *ViewService) Hover() *RecordView {
	v.mu.Lock()
	defer v.mu.Unlock()
	return NewRecordView(v.engine.Hovered())
}

// Selection returns the selected record and its neighborhood.
func (v *ViewService) Selection() SelectionView {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selectionLocked()
}

func (v *ViewService) selectionLocked() SelectionView {
	zone := v.engine.Zone()
	ids := make([]string, len(zone))
	for i, r := range zone {
		ids[i] = r.ID()
	}
	return SelectionView{
		Selected:   NewRecordView(v.engine.Selected()),
		ZoneSize:   len(zone),
		WorkingSet: len(v.engine.WorkingSet()),
		ZoneIDs:    ids,
	}
}

// Stats returns the KPI summary of field over the working set. An empty
// field means the displayed index.
func (v *ViewService) Stats(field string) ([]byte, error) {
	return v.query("stats", field, func(set []*cells.Record, f cells.Field) any {
		return stats.Summarize(set, f)
	})
}

// Radar returns the radar profile of the working set.
func (v *ViewService) Radar() ([]byte, error) {
	return v.query("radar", "", func(set []*cells.Record, _ cells.Field) any {
		return stats.RadarProfile(set, cells.Indices[:])
	})
}

// Indices returns the index cards of the working set.
func (v *ViewService) Indices() ([]byte, error) {
	return v.query("indices", "", func(set []*cells.Record, f cells.Field) any {
		return stats.IndexCards(set, cells.Indices[:], f)
	})
}

// Variables returns the sidebar means of the working set.
func (v *ViewService) Variables() ([]byte, error) {
	return v.query("variables", "", func(set []*cells.Record, _ cells.Field) any {
		return stats.VariableMeans(set, cells.Variables)
	})
}

// Totals returns the vulnerable household and equipment sums.
func (v *ViewService) Totals() ([]byte, error) {
	fields := append([]cells.Field{cells.FieldMenPauv}, cells.EquipmentFields...)
	return v.query("totals", "", func(set []*cells.Record, _ cells.Field) any {
		return stats.Totals(set, fields)
	})
}

// Histogram returns the value distribution of field over the working set.
func (v *ViewService) Histogram(field string, bins int) ([]byte, error) {
	if bins <= 0 {
		bins = stats.DefaultBins
	}
	return v.query("histogram", field, func(set []*cells.Record, f cells.Field) any {
		return stats.Histogram(set, f, bins)
	}, strconv.Itoa(bins))
}

// RadarPNG draws the radar chart of the working set.
func (v *ViewService) RadarPNG() ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	ds := v.engine.Dataset()
	if ds == nil {
		return nil, ErrNotReady
	}
	key := cache.QueryKey("radar.png", cache.WorkingSetKey(ds.Generation(), v.engine.WorkingPositions()))
	return v.cachedImage(key, func() ([]byte, error) {
		return v.renderer.RenderRadar(stats.RadarProfile(v.engine.WorkingSet(), cells.Indices[:]))
	})
}

// HistogramPNG draws the histogram of field over the working set.
func (v *ViewService) HistogramPNG(field string) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	ds := v.engine.Dataset()
	if ds == nil {
		return nil, ErrNotReady
	}
	f, err := v.fieldLocked(field)
	if err != nil {
		return nil, err
	}
	key := cache.QueryKey("histogram.png", cache.WorkingSetKey(ds.Generation(), v.engine.WorkingPositions()), f.String())
	return v.cachedImage(key, func() ([]byte, error) {
		return v.renderer.RenderHistogram(stats.Histogram(v.engine.WorkingSet(), f, stats.DefaultBins))
	})
}

// query memoizes the JSON body of an aggregate keyed by the working set.
func (v *ViewService) query(kind, field string, compute func([]*cells.Record, cells.Field) any, params ...string) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ds := v.engine.Dataset()
	if ds == nil {
		return nil, ErrNotReady
	}
	f, err := v.fieldLocked(field)
	if err != nil {
		return nil, err
	}
	key := cache.QueryKey(kind, cache.WorkingSetKey(ds.Generation(), v.engine.WorkingPositions()),
		append([]string{f.String()}, params...)...)
	if body, ok := v.cache.GetQuery(key); ok {
		return body, nil
	}

	body, err := json.Marshal(compute(v.engine.WorkingSet(), f))
	if err != nil {
		return nil, eris.Wrapf(err, "service: encode %s", kind)
	}
	v.cache.SetQuery(key, body)
	return body, nil
}

// fieldLocked resolves a field name; the empty name is the displayed index.
func (v *ViewService) fieldLocked(name string) (cells.Field, error) {
	if name == "" {
		return v.engine.Index(), nil
	}
	f, ok := cells.ParseField(name)
	if !ok {
		return 0, eris.Wrapf(ErrUnknownField, "service: field %q", name)
	}
	return f, nil
}

// ErrUnknownField is returned for column names outside the field set.
var ErrUnknownField = errors.New("service: unknown field")

func finite(p viewport.Point) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}
