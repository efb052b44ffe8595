// Package render draws scenes and charts using fogleman/gg.
package render

import (
	"bytes"
	"image"
	"image/png"
	"sync"

	"github.com/fogleman/gg"
	"github.com/rotisserie/eris"
)

// Config contains renderer configuration.
type Config struct {
	TileSize int
	// CompressionLevel is passed to the PNG encoder.
	CompressionLevel png.CompressionLevel
}

// Renderer turns scenes into PNG bytes. Drawing contexts are pooled per
// surface size and reused across requests.
type Renderer struct {
	config Config

	mu         sync.Mutex
	pools      map[image.Point]*sync.Pool
	bufferPool sync.Pool
}

// New creates a renderer.
func New(cfg Config) *Renderer {
	if cfg.TileSize <= 0 {
		cfg.TileSize = 256
	}
	if cfg.CompressionLevel == 0 {
		cfg.CompressionLevel = png.BestSpeed
	}
	return &Renderer{
		config: cfg,
		pools:  make(map[image.Point]*sync.Pool),
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 32*1024))
			},
		},
	}
}

func (r *Renderer) pool(w, h int) *sync.Pool {
	key := image.Pt(w, h)
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pools[key]
	if !ok {
		p = &sync.Pool{
			New: func() interface{} {
				return gg.NewContext(w, h)
			},
		}
		r.pools[key] = p
	}
	return p
}

// draw runs fn on a pooled context of the given size and encodes the result.
func (r *Renderer) draw(w, h int, fn func(dc *gg.Context)) ([]byte, error) {
	if w <= 0 || h <= 0 {
		return nil, eris.Errorf("render: invalid surface %dx%d", w, h)
	}
	p := r.pool(w, h)
	dc := p.Get().(*gg.Context)
	defer p.Put(dc)

	dc.Identity()
	dc.ClearPath()
	dc.SetLineWidth(1)
	fn(dc)
	return r.encodeContext(dc)
}

func (r *Renderer) encodeContext(dc *gg.Context) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()

	encoder := png.Encoder{CompressionLevel: r.config.CompressionLevel}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, eris.Wrap(err, "render: encode png")
	}

	// The buffer goes back to the pool.
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

// CreateEmptyTile creates a fully transparent tile.
func (r *Renderer) CreateEmptyTile() ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, r.config.TileSize, r.config.TileSize))
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		return nil, eris.Wrap(err, "render: encode empty tile")
	}
	return buf.Bytes(), nil
}
