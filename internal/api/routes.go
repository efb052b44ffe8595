// Package api provides HTTP handlers for the ZFE-Tiles server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/zfe-tiles/server/internal/cache"
	"github.com/zfe-tiles/server/internal/engine"
	"github.com/zfe-tiles/server/internal/service"
	"github.com/zfe-tiles/server/internal/viewport"
	"github.com/zfe-tiles/server/pkg/colormap"
)

const maxBodyBytes = 1 << 16

// RouterConfig contains router configuration.
type RouterConfig struct {
	Registry    *ViewRegistry
	Data        *service.DataService
	Cache       *cache.Manager
	CORSOrigins []string
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Global endpoints (not view-scoped)
	r.Get("/api/status", statusHandler(cfg))
	r.Post("/api/reload", reloadHandler(cfg.Data))
	r.Get("/api/views", viewsHandler(cfg.Registry))
	r.Post("/api/views", createViewHandler(cfg.Registry))
	r.Delete("/api/views/{view}", deleteViewHandler(cfg.Registry))
	r.Get("/api/legend", legendHandler)

	// View-scoped routes: /v/{view}/...
	r.Route("/v/{view}", func(r chi.Router) {
		r.Use(viewMiddleware(cfg.Registry))

		r.Get("/frame.png", frameHandler)
		r.Get("/tiles/{z}/{x}/{y}.png", tileHandler)

		r.Route("/api", func(r chi.Router) {
			r.Get("/view", viewStateHandler)
			r.Put("/index", setIndexHandler)
			r.Put("/basemap", setBasemapHandler)
			r.Post("/zoom", zoomHandler)
			r.Post("/wheel", wheelHandler)
			r.Post("/pointer", pointerHandler)
			r.Post("/click", clickHandler)
			r.Post("/tiles/pointer", tilePointerHandler)

			r.Get("/stats", statsHandler)
			r.Get("/radar", radarHandler)
			r.Get("/radar.png", radarPNGHandler)
			r.Get("/indices", indicesHandler)
			r.Get("/variables", variablesHandler)
			r.Put("/variables/{field}", setVariableHandler)
			r.Get("/totals", totalsHandler)
			r.Get("/histogram", histogramHandler)
			r.Get("/histogram.png", histogramPNGHandler)
			r.Get("/hover", hoverHandler)
			r.Get("/selection", selectionHandler)
			r.Get("/legend", legendHandler)
		})
	})

	return r
}

// Context key for view service
type ctxKey string

const viewServiceKey ctxKey = "viewService"

// viewMiddleware resolves the view from URL and injects its service into context.
func viewMiddleware(registry *ViewRegistry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			viewID := chi.URLParam(r, "view")
			svc := registry.Get(viewID)
			if svc == nil {
				http.Error(w, "view not found: "+viewID, http.StatusNotFound)
				return
			}
			ctx := context.WithValue(r.Context(), viewServiceKey, svc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func getViewService(r *http.Request) *service.ViewService {
	if svc, ok := r.Context().Value(viewServiceKey).(*service.ViewService); ok {
		return svc
	}
	return nil
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrUnknownField), errors.Is(err, engine.ErrUnknownIndex):
		return http.StatusNotFound
	case errors.Is(err, service.ErrBadRequest),
		errors.Is(err, engine.ErrUnknownBasemap),
		errors.Is(err, engine.ErrNotEditable):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrLoadInProgress), errors.Is(err, ErrDefaultView):
		return http.StatusConflict
	case errors.Is(err, ErrTooManyViews):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeBody writes a pre-encoded JSON body.
func writeBody(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// writePNG writes an image that depends on mutable view state, so it is
// never cached by clients.
func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		return eris.Wrapf(service.ErrBadRequest, "api: decode body: %v", err)
	}
	return nil
}

// statusHandler reports the data load state, the views and the caches.
func statusHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"data":  cfg.Data.Status(),
			"views": cfg.Registry.Len(),
		}
		if cfg.Cache != nil {
			response["cache"] = cfg.Cache.Stats()
		}
		writeJSON(w, http.StatusOK, response)
	}
}

// reloadHandler starts a new data load. The load outlives the request.
func reloadHandler(data *service.DataService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := data.Reload(context.WithoutCancel(r.Context())); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, data.Status())
	}
}

func viewsHandler(registry *ViewRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"default": registry.DefaultViewID(),
			"views":   registry.Views(),
		})
	}
}

func createViewHandler(registry *ViewRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, err := registry.Create()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, svc.State())
	}
}

func deleteViewHandler(registry *ViewRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "view")
		ok, err := registry.Delete(id)
		if err != nil {
			writeError(w, err)
			return
		}
		if !ok {
			http.Error(w, "view not found: "+id, http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func legendHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, colormap.Legend())
}

// View-scoped handlers (get service from context)

func frameHandler(w http.ResponseWriter, r *http.Request) {
	data, err := getViewService(r).Frame()
	if err != nil {
		writeError(w, err)
		return
	}
	writePNG(w, data)
}

func tileHandler(w http.ResponseWriter, r *http.Request) {
	z, err := strconv.Atoi(chi.URLParam(r, "z"))
	if err != nil {
		http.Error(w, "invalid z", http.StatusBadRequest)
		return
	}
	x, err := strconv.Atoi(chi.URLParam(r, "x"))
	if err != nil {
		http.Error(w, "invalid x", http.StatusBadRequest)
		return
	}
	y, err := strconv.Atoi(chi.URLParam(r, "y"))
	if err != nil {
		http.Error(w, "invalid y", http.StatusBadRequest)
		return
	}

	data, err := getViewService(r).Tile(z, x, y)
	if err != nil {
		writeError(w, err)
		return
	}
	writePNG(w, data)
}

func viewStateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, getViewService(r).State())
}

type indexRequest struct {
	Index string `json:"index"`
}

func setIndexHandler(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	svc := getViewService(r)
	if err := svc.SetIndex(req.Index); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, svc.State())
}

type basemapRequest struct {
	Basemap string `json:"basemap"`
}

func setBasemapHandler(w http.ResponseWriter, r *http.Request) {
	var req basemapRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	svc := getViewService(r)
	if err := svc.SetBasemap(req.Basemap); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, svc.State())
}

type zoomRequest struct {
	Action string `json:"action"`
}

func zoomHandler(w http.ResponseWriter, r *http.Request) {
	var req zoomRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	state, err := getViewService(r).Zoom(req.Action)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type wheelRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	DeltaY float64 `json:"delta_y"`
}

func wheelHandler(w http.ResponseWriter, r *http.Request) {
	var req wheelRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	state, err := getViewService(r).Wheel(viewport.Point{X: req.X, Y: req.Y}, req.DeltaY)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type pointerRequest struct {
	Action string  `json:"action"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

func pointerHandler(w http.ResponseWriter, r *http.Request) {
	var req pointerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	state, err := getViewService(r).Pointer(req.Action, viewport.Point{X: req.X, Y: req.Y})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func clickHandler(w http.ResponseWriter, r *http.Request) {
	var req pointerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sel, err := getViewService(r).Click(viewport.Point{X: req.X, Y: req.Y})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

type tilePointerRequest struct {
	Action string  `json:"action"`
	Z      int     `json:"z"`
	X      int     `json:"x"`
	Y      int     `json:"y"`
	PX     float64 `json:"px"`
	PY     float64 `json:"py"`
}

func tilePointerHandler(w http.ResponseWriter, r *http.Request) {
	var req tilePointerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rec, err := getViewService(r).TilePointer(req.Action, req.Z, req.X, req.Y, viewport.Point{X: req.PX, Y: req.PY})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"record": rec})
}

func statsHandler(w http.ResponseWriter, r *http.Request) {
	body, err := getViewService(r).Stats(r.URL.Query().Get("field"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeBody(w, body)
}

func radarHandler(w http.ResponseWriter, r *http.Request) {
	body, err := getViewService(r).Radar()
	if err != nil {
		writeError(w, err)
		return
	}
	writeBody(w, body)
}

func radarPNGHandler(w http.ResponseWriter, r *http.Request) {
	data, err := getViewService(r).RadarPNG()
	if err != nil {
		writeError(w, err)
		return
	}
	writePNG(w, data)
}

func indicesHandler(w http.ResponseWriter, r *http.Request) {
	body, err := getViewService(r).Indices()
	if err != nil {
		writeError(w, err)
		return
	}
	writeBody(w, body)
}

func variablesHandler(w http.ResponseWriter, r *http.Request) {
	body, err := getViewService(r).Variables()
	if err != nil {
		writeError(w, err)
		return
	}
	writeBody(w, body)
}

type variableRequest struct {
	Value *float64 `json:"value"`
}

func setVariableHandler(w http.ResponseWriter, r *http.Request) {
	var req variableRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Value == nil {
		http.Error(w, "missing value", http.StatusBadRequest)
		return
	}
	svc := getViewService(r)
	if err := svc.SetVariable(chi.URLParam(r, "field"), *req.Value); err != nil {
		writeError(w, err)
		return
	}
	body, err := svc.Variables()
	if err != nil {
		writeError(w, err)
		return
	}
	writeBody(w, body)
}

func totalsHandler(w http.ResponseWriter, r *http.Request) {
	body, err := getViewService(r).Totals()
	if err != nil {
		writeError(w, err)
		return
	}
	writeBody(w, body)
}

func histogramHandler(w http.ResponseWriter, r *http.Request) {
	bins := 0
	if raw := r.URL.Query().Get("bins"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			http.Error(w, "invalid bins", http.StatusBadRequest)
			return
		}
		bins = n
	}
	body, err := getViewService(r).Histogram(r.URL.Query().Get("field"), bins)
	if err != nil {
		writeError(w, err)
		return
	}
	writeBody(w, body)
}

func histogramPNGHandler(w http.ResponseWriter, r *http.Request) {
	data, err := getViewService(r).HistogramPNG(r.URL.Query().Get("field"))
	if err != nil {
		writeError(w, err)
		return
	}
	writePNG(w, data)
}

func hoverHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"record": getViewService(r).Hover()})
}

func selectionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, getViewService(r).Selection())
}
