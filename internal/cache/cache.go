// Package cache provides caching for rendered images and stats responses.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"

	"github.com/zfe-tiles/server/internal/engine"
)

// Config contains cache configuration.
type Config struct {
	ImageCacheSizeMB int
	ImageTTL         time.Duration
	QueryCacheSize   int
}

// Manager manages the image and query caches.
type Manager struct {
	imageCache *bigcache.BigCache
	queryCache *lru.Cache[string, []byte]
}

// NewManager creates a new cache manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.ImageTTL <= 0 {
		cfg.ImageTTL = 10 * time.Minute
	}
	if cfg.ImageCacheSizeMB <= 0 {
		cfg.ImageCacheSizeMB = 64
	}
	if cfg.QueryCacheSize <= 0 {
		cfg.QueryCacheSize = 1024
	}

	imageCacheConfig := bigcache.Config{
		Shards:             16,
		LifeWindow:         cfg.ImageTTL,
		CleanWindow:        cfg.ImageTTL / 2,
		MaxEntriesInWindow: 1000,
		MaxEntrySize:       256 * 1024, // full frames are larger than tiles
		HardMaxCacheSize:   cfg.ImageCacheSizeMB,
		Verbose:            false,
	}

	imageCache, err := bigcache.New(context.Background(), imageCacheConfig)
	if err != nil {
		return nil, eris.Wrap(err, "cache: create image cache")
	}

	queryCache, err := lru.New[string, []byte](cfg.QueryCacheSize)
	if err != nil {
		return nil, eris.Wrap(err, "cache: create query cache")
	}

	return &Manager{
		imageCache: imageCache,
		queryCache: queryCache,
	}, nil
}

// GetImage retrieves a rendered PNG.
func (m *Manager) GetImage(key string) ([]byte, bool) {
	data, err := m.imageCache.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetImage stores a rendered PNG.
func (m *Manager) SetImage(key string, data []byte) error {
	return m.imageCache.Set(key, data)
}

// GetQuery retrieves a memoized response body.
func (m *Manager) GetQuery(key string) ([]byte, bool) {
	return m.queryCache.Get(key)
}

// SetQuery stores a memoized response body.
func (m *Manager) SetQuery(key string, data []byte) {
	m.queryCache.Add(key, data)
}

// Purge drops every entry, after a dataset reload for instance.
func (m *Manager) Purge() error {
	m.queryCache.Purge()
	return m.imageCache.Reset()
}

// FrameKey keys a full canvas frame by everything that affects its pixels.
// The cursor only matters while a tooltip is shown.
func FrameKey(s engine.State) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%dx%d|%g|%g,%g|%s|%s",
		s.Generation, s.Index, s.Basemap, s.Width, s.Height,
		s.Zoom, s.Pan.X, s.Pan.Y, s.Hovered, s.Selected)
	if s.Hovered != "" && s.Cursor != nil {
		fmt.Fprintf(h, "|%g,%g", s.Cursor.X, s.Cursor.Y)
	}
	return "frame:" + hex.EncodeToString(h.Sum(nil))[:32]
}

// TileKey keys a map tile. Tiles depend on the data, the index and the
// hover/selection state, never on the canvas transform.
func TileKey(z, x, y int, s engine.State) string {
	return fmt.Sprintf("tile:%d/%d/%d:%s:%s:%s:%s", z, x, y, s.Generation, s.Index, s.Hovered, s.Selected)
}

// WorkingSetKey identifies a working set structurally: the dataset generation
// plus the sorted positions it contains. nil positions mean the full set.
func WorkingSetKey(generation string, positions []int) string {
	if positions == nil {
		return generation + ":all"
	}
	sorted := append([]int(nil), positions...)
	sort.Ints(sorted)

	h := sha256.New()
	var buf [8]byte
	for _, p := range sorted {
		binary.LittleEndian.PutUint64(buf[:], uint64(p))
		h.Write(buf[:])
	}
	return generation + ":" + hex.EncodeToString(h.Sum(nil))[:16]
}

// QueryKey keys a memoized response by kind, working set and parameters.
func QueryKey(kind, workingSet string, params ...string) string {
	key := kind + ":" + workingSet
	for _, p := range params {
		key += ":" + p
	}
	return key
}

// Stats returns cache statistics.
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"image_cache_len":  m.imageCache.Len(),
		"image_cache_cap":  m.imageCache.Capacity(),
		"image_cache_hits": m.imageCache.Stats().Hits,
		"query_cache_len":  m.queryCache.Len(),
	}
}

// Close closes the cache manager.
func (m *Manager) Close() error {
	return m.imageCache.Close()
}
