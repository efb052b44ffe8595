// Package service provides the business logic of the map server: loading the
// cell grid once and driving one engine per view.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/zfe-tiles/server/internal/data/cells"
	"github.com/zfe-tiles/server/internal/data/source"
)

// LoadState is the data load state machine: loading, then ready or error.
type LoadState string

const (
	StateLoading LoadState = "loading"
	StateReady   LoadState = "ready"
	StateError   LoadState = "error"
)

var (
	// ErrNotReady is returned while no dataset is installed.
	ErrNotReady = errors.New("service: data not ready")
	// ErrLoadInProgress is returned by Reload while a load is running.
	ErrLoadInProgress = errors.New("service: load already in progress")
)

// LoadFunc fetches and parses the grid.
type LoadFunc func(ctx context.Context) (*cells.Dataset, source.Report, error)

// Status reports the data load state.
type Status struct {
	State      LoadState     `json:"state"`
	Error      string        `json:"error,omitempty"`
	Location   string        `json:"location,omitempty"`
	Generation string        `json:"generation,omitempty"`
	Records    int           `json:"records"`
	Located    int           `json:"located"`
	Report     source.Report `json:"report"`
	LoadedAt   *time.Time    `json:"loaded_at,omitempty"`
}

// DataService owns the installed dataset. Datasets are immutable, so views
// share them without copying.
type DataService struct {
	load     LoadFunc
	location string
	logger   *zap.Logger

	mu        sync.RWMutex
	state     LoadState
	err       error
	ds        *cells.Dataset
	report    source.Report
	loadedAt  time.Time
	listeners map[int]func(*cells.Dataset)
	nextID    int
	done      chan struct{}
}

// NewDataService creates a data service in the loading state. location is
// only reported.
func NewDataService(location string, load LoadFunc) *DataService {
	return &DataService{
		load:      load,
		location:  location,
		logger:    zap.L().With(zap.String("component", "data")),
		state:     StateLoading,
		listeners: make(map[int]func(*cells.Dataset)),
	}
}

// SourceLoader returns a LoadFunc reading location with the given options.
func SourceLoader(location string, opts source.Options) LoadFunc {
	return func(ctx context.Context) (*cells.Dataset, source.Report, error) {
		return source.Load(ctx, nil, location, opts)
	}
}

// Start begins the first load in the background. The returned channel closes
// when that load finishes.
func (s *DataService) Start(ctx context.Context) <-chan struct{} {
	s.mu.Lock()
	done := s.begin()
	s.mu.Unlock()
	go s.run(ctx, done)
	return done
}

// Reload starts a new load unless one is running. A failed load stays
// terminal until Reload is called.
func (s *DataService) Reload(ctx context.Context) (<-chan struct{}, error) {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return nil, ErrLoadInProgress
	}
	done := s.begin()
	s.mu.Unlock()
	go s.run(ctx, done)
	return done, nil
}

// Load runs one load synchronously.
func (s *DataService) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return ErrLoadInProgress
	}
	done := s.begin()
	s.mu.Unlock()
	return s.run(ctx, done)
}

// begin must be called with mu held.
func (s *DataService) begin() chan struct{} {
	s.state = StateLoading
	s.err = nil
	s.done = make(chan struct{})
	return s.done
}

// run performs the load. In-flight loads are not cancelled by the caller's
// context and have no timeout.
func (s *DataService) run(ctx context.Context, done chan struct{}) error {
	defer close(done)
	started := time.Now()
	ds, report, err := s.load(context.WithoutCancel(ctx))

	s.mu.Lock()
	s.done = nil
	if err != nil {
		s.state = StateError
		s.err = err
		s.mu.Unlock()
		s.logger.Error("data load failed", zap.String("location", s.location), zap.Error(err))
		return eris.Wrap(err, "service: load data")
	}
	s.state = StateReady
	s.ds = ds
	s.report = report
	s.loadedAt = time.Now()
	listeners := make([]func(*cells.Dataset), 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	s.mu.Unlock()

	s.logger.Info("data loaded",
		zap.String("generation", ds.Generation()),
		zap.Int("rows", report.Rows),
		zap.Int("dropped", report.Dropped),
		zap.Int("unlocated", report.Unlocated),
		zap.Int("duplicates", report.Duplicates),
		zap.Duration("elapsed", time.Since(started)))

	for _, fn := range listeners {
		fn(ds)
	}
	return nil
}

// Subscribe registers fn for every successful load. When a dataset is already
// installed fn is called with it immediately. The returned func unregisters fn.
func (s *DataService) Subscribe(fn func(*cells.Dataset)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	ds := s.ds
	s.mu.Unlock()
	if ds != nil {
		fn(ds)
	}
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Dataset returns the installed dataset.
func (s *DataService) Dataset() (*cells.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ds == nil {
		return nil, ErrNotReady
	}
	return s.ds, nil
}

// Status returns the load state.
func (s *DataService) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		State:    s.state,
		Location: s.location,
		Report:   s.report,
	}
	if s.err != nil {
		st.Error = s.err.Error()
	}
	if s.ds != nil {
		st.Generation = s.ds.Generation()
		st.Records = s.ds.Len()
		st.Located = len(s.ds.Located())
		t := s.loadedAt
		st.LoadedAt = &t
	}
	return st
}
