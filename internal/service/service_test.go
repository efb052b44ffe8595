package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zfe-tiles/server/internal/cache"
	"github.com/zfe-tiles/server/internal/data/cells"
	"github.com/zfe-tiles/server/internal/data/source"
	"github.com/zfe-tiles/server/internal/engine"
	"github.com/zfe-tiles/server/internal/render"
	"github.com/zfe-tiles/server/internal/stats"
	"github.com/zfe-tiles/server/internal/viewport"
)

const (
	cellA = "CRS3035RES200mN2469200E3982600"
	cellB = "CRS3035RES200mN2469400E3982600"
	cellC = "CRS3035RES200mN2469200E3982800"
	cellD = "CRS3035RES200mN2472000E3986000"
)

func fixture() *cells.Dataset {
	rec := func(id string, v float64) cells.Record {
		return cells.NewRecord(id, map[cells.Field]float64{
			cells.FieldEWBN:    v,
			cells.FieldEWB:     v * 10,
			cells.FieldGAIN:    1 - v,
			cells.FieldMen:     10,
			cells.FieldMenPauv: 2,
			cells.FieldInd:     24,
		})
	}
	return cells.NewDataset([]cells.Record{
		rec(cellA, 0.1),
		rec(cellB, 0.3),
		rec(cellC, 0.6),
		rec(cellD, 0.9),
		cells.NewRecord("no-location", map[cells.Field]float64{cells.FieldEWBN: 0.5}),
	})
}

func staticLoader(ds *cells.Dataset) LoadFunc {
	return func(context.Context) (*cells.Dataset, source.Report, error) {
		return ds, source.Report{Rows: ds.Len(), Unlocated: 1}, nil
	}
}

func newView(t *testing.T, data *DataService) *ViewService {
	t.Helper()
	return newViewWith(t, data, engine.DefaultConfig())
}

func newViewWith(t *testing.T, data *DataService, cfg engine.Config) *ViewService {
	t.Helper()
	m, err := cache.NewManager(cache.Config{ImageCacheSizeMB: 16, ImageTTL: time.Minute, QueryCacheSize: 64})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	return NewViewService(ViewServiceConfig{
		ID:       "default",
		Engine:   cfg,
		Data:     data,
		Cache:    m,
		Renderer: render.New(render.Config{TileSize: viewport.TileSize}),
	})
}

func readyView(t *testing.T) *ViewService {
	t.Helper()
	data := NewDataService("memory", staticLoader(fixture()))
	require.NoError(t, data.Load(context.Background()))
	return newView(t, data)
}

func canvasPoint(t *testing.T, v *ViewService, id string) viewport.Point {
	t.Helper()
	canvas, ok := v.engine.Canvas()
	require.True(t, ok)
	i, ok := v.engine.Dataset().Lookup(id)
	require.True(t, ok)
	loc, ok := v.engine.Dataset().At(i).Location()
	require.True(t, ok)
	return canvas.Project(loc)
}

func TestDataService_LoadLifecycle(t *testing.T) {
	ds := fixture()
	data := NewDataService("memory", staticLoader(ds))
	assert.Equal(t, StateLoading, data.Status().State)
	_, err := data.Dataset()
	assert.ErrorIs(t, err, ErrNotReady)

	var seen []*cells.Dataset
	data.Subscribe(func(d *cells.Dataset) { seen = append(seen, d) })

	require.NoError(t, data.Load(context.Background()))
	st := data.Status()
	assert.Equal(t, StateReady, st.State)
	assert.Equal(t, ds.Generation(), st.Generation)
	assert.Equal(t, 5, st.Records)
	assert.Equal(t, 4, st.Located)
	assert.NotNil(t, st.LoadedAt)
	assert.Equal(t, []*cells.Dataset{ds}, seen)

	// Late subscribers see the installed dataset at once.
	var late *cells.Dataset
	data.Subscribe(func(d *cells.Dataset) { late = d })
	assert.Same(t, ds, late)
}

func TestDataService_Unsubscribe(t *testing.T) {
	data := NewDataService("memory", staticLoader(fixture()))
	calls := 0
	cancel := data.Subscribe(func(*cells.Dataset) { calls++ })

	require.NoError(t, data.Load(context.Background()))
	cancel()
	require.NoError(t, data.Load(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestDataService_FailureIsTerminalUntilReload(t *testing.T) {
	fail := true
	data := NewDataService("memory", func(ctx context.Context) (*cells.Dataset, source.Report, error) {
		if fail {
			return nil, source.Report{}, source.ErrLoadFailed
		}
		return fixture(), source.Report{}, nil
	})

	err := data.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrLoadFailed)
	st := data.Status()
	assert.Equal(t, StateError, st.State)
	assert.NotEmpty(t, st.Error)

	fail = false
	done, err := data.Reload(context.Background())
	require.NoError(t, err)
	<-done
	assert.Equal(t, StateReady, data.Status().State)
	assert.Empty(t, data.Status().Error)
}

func TestDataService_ReloadWhileLoading(t *testing.T) {
	release := make(chan struct{})
	data := NewDataService("memory", func(ctx context.Context) (*cells.Dataset, source.Report, error) {
		<-release
		return fixture(), source.Report{}, nil
	})

	done := data.Start(context.Background())
	_, err := data.Reload(context.Background())
	assert.ErrorIs(t, err, ErrLoadInProgress)
	assert.ErrorIs(t, data.Load(context.Background()), ErrLoadInProgress)

	close(release)
	<-done
	assert.Equal(t, StateReady, data.Status().State)
}

func TestDataService_CancelledContextDoesNotAbortLoad(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	data := NewDataService("memory", func(ctx context.Context) (*cells.Dataset, source.Report, error) {
		if ctx.Err() != nil {
			return nil, source.Report{}, ctx.Err()
		}
		return fixture(), source.Report{}, nil
	})
	require.NoError(t, data.Load(ctx))
}

func TestViewService_NotReady(t *testing.T) {
	v := newView(t, NewDataService("memory", staticLoader(fixture())))

	_, err := v.Frame()
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = v.Tile(0, 0, 0)
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = v.Stats("")
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = v.RadarPNG()
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, v.SetVariable("men", 3), ErrNotReady)
	assert.Empty(t, v.State().Generation)
}

func TestViewService_InstallsOnLoad(t *testing.T) {
	data := NewDataService("memory", staticLoader(fixture()))
	v := newView(t, data)
	require.NoError(t, data.Load(context.Background()))

	st := v.State()
	assert.Equal(t, "default", st.ID)
	assert.NotEmpty(t, st.Generation)
	assert.Equal(t, 5, st.Notified.WorkingSet)
	assert.Equal(t, 12, st.Notified.ZoomLevel)
}

func TestViewService_FrameIsCached(t *testing.T) {
	v := readyView(t)

	first, err := v.Frame()
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(first))
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 600, img.Bounds().Dy())

	cached, ok := v.cache.GetImage(cache.FrameKey(v.engine.State()))
	require.True(t, ok)
	assert.Equal(t, first, cached)

	_, err = v.Zoom("in")
	require.NoError(t, err)
	zoomed, err := v.Frame()
	require.NoError(t, err)
	assert.NotEqual(t, first, zoomed)
}

func TestViewService_Tiles(t *testing.T) {
	v := readyView(t)

	for _, tc := range []struct{ z, x, y int }{{-1, 0, 0}, {23, 0, 0}, {2, 4, 0}, {2, 0, -1}} {
		_, err := v.Tile(tc.z, tc.x, tc.y)
		assert.ErrorIs(t, err, ErrBadRequest, "%d/%d/%d", tc.z, tc.x, tc.y)
	}

	data, err := v.Tile(0, 0, 0)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, viewport.TileSize, img.Bounds().Dx())
}

func TestViewService_TilePointer(t *testing.T) {
	v := readyView(t)
	loc, ok := cells.Locate(cellD)
	require.True(t, ok)

	const z = 14
	global := viewport.MercatorPixel(loc, z)
	x, y := int(global.X)/viewport.TileSize, int(global.Y)/viewport.TileSize
	local := viewport.Point{X: global.X - float64(x*viewport.TileSize), Y: global.Y - float64(y*viewport.TileSize)}

	hovered, err := v.TilePointer("hover", z, x, y, local)
	require.NoError(t, err)
	require.NotNil(t, hovered)
	assert.Equal(t, cellD, hovered.ID)
	assert.Equal(t, cellD, v.Hover().ID)

	selected, err := v.TilePointer("click", z, x, y, local)
	require.NoError(t, err)
	require.NotNil(t, selected)
	assert.Equal(t, cellD, v.Selection().Selected.ID)

	_, err = v.TilePointer("drag", z, x, y, local)
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestViewService_Settings(t *testing.T) {
	v := readyView(t)

	require.NoError(t, v.SetIndex("GAI_n"))
	assert.Equal(t, "GAI_n", v.State().Index)
	assert.ErrorIs(t, v.SetIndex("nope"), engine.ErrUnknownIndex)
	assert.ErrorIs(t, v.SetIndex("EWB"), engine.ErrUnknownIndex)

	require.NoError(t, v.SetBasemap("satellite"))
	assert.Equal(t, engine.BasemapSatellite, v.State().Basemap)
	assert.ErrorIs(t, v.SetBasemap("watercolor"), engine.ErrUnknownBasemap)

	_, err := v.Zoom("sideways")
	assert.ErrorIs(t, err, ErrBadRequest)
	st, err := v.Zoom("in")
	require.NoError(t, err)
	assert.InDelta(t, 1.2, st.Zoom, 1e-9)
	st, err = v.Zoom("reset")
	require.NoError(t, err)
	assert.Equal(t, 1.0, st.Zoom)
}

func TestViewService_PointerAndClick(t *testing.T) {
	v := readyView(t)
	p := canvasPoint(t, v, cellA)

	st, err := v.Pointer("move", p)
	require.NoError(t, err)
	assert.Equal(t, cellA, st.Hovered)
	assert.Equal(t, cellA, st.Notified.Hovered)

	_, err = v.Pointer("hop", p)
	assert.ErrorIs(t, err, ErrBadRequest)

	sel, err := v.Click(p)
	require.NoError(t, err)
	require.NotNil(t, sel.Selected)
	assert.Equal(t, cellA, sel.Selected.ID)
	assert.Equal(t, 3, sel.ZoneSize)
	assert.ElementsMatch(t, []string{cellA, cellB, cellC}, sel.ZoneIDs)
	assert.Equal(t, 3, v.State().Notified.WorkingSet)

	miss, err := v.Click(viewport.Point{X: -500, Y: -500})
	require.NoError(t, err)
	assert.Nil(t, miss.Selected)
	assert.Equal(t, 5, miss.WorkingSet)
}

func TestViewService_WheelRejectsNonFinite(t *testing.T) {
	data := NewDataService("memory", staticLoader(fixture()))
	require.NoError(t, data.Load(context.Background()))
	cfg := engine.DefaultConfig()
	cfg.ZoomAboutCursor = true
	v := newViewWith(t, data, cfg)

	for _, tc := range []struct {
		cursor viewport.Point
		deltaY float64
	}{
		{viewport.Point{X: nan(), Y: 10}, -1},
		{viewport.Point{X: 10, Y: math.Inf(1)}, -1},
		{viewport.Point{X: 10, Y: 10}, nan()},
	} {
		_, err := v.Wheel(tc.cursor, tc.deltaY)
		assert.ErrorIs(t, err, ErrBadRequest)
	}
	st := v.State()
	assert.Equal(t, 1.0, st.Zoom)
	assert.Equal(t, viewport.Point{}, st.Pan)

	st, err := v.Wheel(viewport.Point{X: 100, Y: 100}, -1)
	require.NoError(t, err)
	assert.InDelta(t, 1.1, st.Zoom, 1e-12)
	assert.False(t, math.IsNaN(st.Pan.X) || math.IsNaN(st.Pan.Y))
}

func TestViewService_InfiniteValuesDoNotBreakQueries(t *testing.T) {
	ds := cells.NewDataset([]cells.Record{
		cells.NewRecord(cellA, map[cells.Field]float64{cells.FieldEWBN: 0.1}),
		cells.NewRecord(cellB, map[cells.Field]float64{cells.FieldEWBN: 0.5}),
		cells.NewRecord(cellC, map[cells.Field]float64{cells.FieldEWBN: math.Inf(1)}),
	})
	data := NewDataService("memory", staticLoader(ds))
	require.NoError(t, data.Load(context.Background()))
	v := newView(t, data)

	body, err := v.Stats("")
	require.NoError(t, err)
	var summary stats.Summary
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.Equal(t, 3, summary.Count)
	assert.InDelta(t, 0.3, summary.Mean, 1e-12)

	_, err = v.Histogram("", 10)
	require.NoError(t, err)
	_, err = v.HistogramPNG("")
	require.NoError(t, err)
	_, err = v.Radar()
	require.NoError(t, err)
}

func TestViewService_StatsFollowWorkingSet(t *testing.T) {
	v := readyView(t)

	var all stats.Summary
	body, err := v.Stats("")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &all))
	assert.Equal(t, 5, all.Count)
	assert.InDelta(t, 0.48, all.Mean, 1e-9)

	again, err := v.Stats("")
	require.NoError(t, err)
	assert.Equal(t, body, again)

	_, err = v.Click(canvasPoint(t, v, cellA))
	require.NoError(t, err)

	var zone stats.Summary
	body, err = v.Stats("EWB_n")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &zone))
	assert.Equal(t, 3, zone.Count)
	assert.InDelta(t, (0.1+0.3+0.6)/3, zone.Mean, 1e-9)

	_, err = v.Stats("bogus")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestViewService_Aggregates(t *testing.T) {
	v := readyView(t)

	var radar []stats.RadarPoint
	body, err := v.Radar()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &radar))
	require.Len(t, radar, 8)
	assert.Equal(t, "EWB", radar[0].Label)

	var cards []stats.IndexCard
	body, err = v.Indices()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &cards))
	require.Len(t, cards, 8)
	assert.True(t, cards[0].Active)

	var totals []stats.Total
	body, err = v.Totals()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &totals))
	require.Len(t, totals, 5)
	assert.Equal(t, "men_pauv", totals[0].Key)
	assert.Equal(t, 8.0, totals[0].Sum)

	var bins []stats.Bin
	body, err = v.Histogram("", 4)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &bins))
	assert.Len(t, bins, 4)

	for _, draw := range []func() ([]byte, error){v.RadarPNG, func() ([]byte, error) { return v.HistogramPNG("") }} {
		data, err := draw()
		require.NoError(t, err)
		_, err = png.Decode(bytes.NewReader(data))
		assert.NoError(t, err)
	}
}

func TestViewService_SetVariable(t *testing.T) {
	v := readyView(t)
	before := v.State().Generation

	require.NoError(t, v.SetVariable("men", 4))
	assert.NotEqual(t, before, v.State().Generation)

	var means []stats.VariableMean
	body, err := v.Variables()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &means))
	require.NotEmpty(t, means)
	assert.Equal(t, "men", means[0].Key)
	assert.Equal(t, 4.0, means[0].RawMean)

	assert.ErrorIs(t, v.SetVariable("EWB_n", 1), engine.ErrNotEditable)
	assert.ErrorIs(t, v.SetVariable("unknown", 1), engine.ErrNotEditable)
	assert.True(t, errors.Is(v.SetVariable("men", nan()), ErrBadRequest))
}

func TestNewRecordView(t *testing.T) {
	assert.Nil(t, NewRecordView(nil))

	ds := fixture()
	i, _ := ds.Lookup("no-location")
	rv := NewRecordView(ds.At(i))
	assert.Nil(t, rv.Location)
	assert.Equal(t, map[string]float64{"EWB_n": 0.5}, rv.Values)

	body, err := json.Marshal(NewRecordView(ds.At(0)))
	require.NoError(t, err)
	assert.Contains(t, string(body), `"lat":`)
}

func nan() float64 {
	var zero float64
	return zero / zero
}
