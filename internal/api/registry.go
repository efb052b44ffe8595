package api

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zfe-tiles/server/internal/service"
)

// DefaultViewID names the view created at startup.
const DefaultViewID = "default"

var (
	// ErrTooManyViews is returned when the registry is full.
	ErrTooManyViews = errors.New("api: too many views")
	// ErrDefaultView is returned when deleting the default view.
	ErrDefaultView = errors.New("api: the default view cannot be deleted")
)

// ViewInfo describes a view for the API response.
type ViewInfo struct {
	ID      string    `json:"id"`
	Default bool      `json:"default"`
	Created time.Time `json:"created"`
}

// ViewFactory builds a view with the given id.
type ViewFactory func(id string) *service.ViewService

// ViewRegistry holds the views of the server. Views are independent: each has
// its own viewport, hover and selection over the shared dataset.
type ViewRegistry struct {
	mu          sync.RWMutex
	views       map[string]*service.ViewService
	order       []string
	defaultView string
	maxViews    int
	factory     ViewFactory
}

// NewViewRegistry creates a registry holding the default view. maxViews <= 0
// means unlimited.
func NewViewRegistry(maxViews int, factory ViewFactory) *ViewRegistry {
	r := &ViewRegistry{
		views:       make(map[string]*service.ViewService),
		defaultView: DefaultViewID,
		maxViews:    maxViews,
		factory:     factory,
	}
	r.Register(DefaultViewID, factory(DefaultViewID))
	return r
}

// Register adds a view.
func (r *ViewRegistry) Register(id string, svc *service.ViewService) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.views[id]; !ok {
		r.order = append(r.order, id)
	}
	r.views[id] = svc
}

// Create builds a new view with a random id.
func (r *ViewRegistry) Create() (*service.ViewService, error) {
	r.mu.RLock()
	full := r.maxViews > 0 && len(r.views) >= r.maxViews
	r.mu.RUnlock()
	if full {
		return nil, ErrTooManyViews
	}

	id := uuid.NewString()
	svc := r.factory(id)
	r.Register(id, svc)
	return svc, nil
}

// Delete removes a view. It reports whether the view existed.
func (r *ViewRegistry) Delete(id string) (bool, error) {
	if id == r.defaultView {
		return false, ErrDefaultView
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, ok := r.views[id]
	if !ok {
		return false, nil
	}
	svc.Close()
	delete(r.views, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// Get returns the view, or nil if not found.
func (r *ViewRegistry) Get(id string) *service.ViewService {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.views[id]
}

// Default returns the default view.
func (r *ViewRegistry) Default() *service.ViewService {
	return r.Get(r.defaultView)
}

// DefaultViewID returns the default view id.
func (r *ViewRegistry) DefaultViewID() string {
	return r.defaultView
}

// Len returns the number of views.
func (r *ViewRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.views)
}

// Views returns view info in creation order.
func (r *ViewRegistry) Views() []ViewInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]ViewInfo, 0, len(r.order))
	for _, id := range r.order {
		infos = append(infos, ViewInfo{
			ID:      id,
			Default: id == r.defaultView,
			Created: r.views[id].Created(),
		})
	}
	return infos
}
