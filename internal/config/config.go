// Package config handles configuration loading for the ZFE-Tiles server.
package config

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/zfe-tiles/server/internal/data/cells"
	"github.com/zfe-tiles/server/internal/data/source"
	"github.com/zfe-tiles/server/internal/engine"
	"github.com/zfe-tiles/server/internal/spatial"
	"github.com/zfe-tiles/server/internal/viewport"
)

// DefaultDataURL is the published cell grid.
const DefaultDataURL = "https://hebbkx1anhila5yf.public.blob.vercel-storage.com/Couche-CWc5bx81JIbbVgVLZhbsgDH7RMDtmX.csv"

// Config represents the server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Data   DataConfig   `yaml:"data"`
	Cache  CacheConfig  `yaml:"cache"`
	Render RenderConfig `yaml:"render"`
	View   ViewConfig   `yaml:"view"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	CORSOrigins     []string `yaml:"cors_origins"`
	ShutdownSeconds int      `yaml:"shutdown_seconds"`
	MaxViews        int      `yaml:"max_views"`
}

// DataConfig contains data source settings.
type DataConfig struct {
	// URL is an http(s) URL, a file:// URL or a local path.
	URL       string `yaml:"url"`
	IDColumn  string `yaml:"id_column"`
	Delimiter string `yaml:"delimiter"`
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	ImageSizeMB     int `yaml:"image_size_mb"`
	ImageTTLMinutes int `yaml:"image_ttl_minutes"`
	QuerySize       int `yaml:"query_size"`
}

// RenderConfig contains rendering settings.
type RenderConfig struct {
	TileSize int `yaml:"tile_size"`
}

// ViewConfig contains the interactive map settings.
type ViewConfig struct {
	Width           int     `yaml:"width"`
	Height          int     `yaml:"height"`
	MinZoom         float64 `yaml:"min_zoom"`
	MaxZoom         float64 `yaml:"max_zoom"`
	HitRadius       float64 `yaml:"hit_radius"`
	HitPolicy       string  `yaml:"hit_policy"`
	ZoneThreshold   float64 `yaml:"zone_threshold"`
	DefaultIndex    string  `yaml:"default_index"`
	Basemap         string  `yaml:"basemap"`
	ZoomAboutCursor bool    `yaml:"zoom_about_cursor"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, eris.Wrapf(err, "config: read %s", path)
	}

	// Zoom bounds are seeded before decoding so an explicit 0 can mean
	// unbounded.
	var cfg Config
	cfg.View.MinZoom = DefaultConfig().View.MinZoom
	cfg.View.MaxZoom = DefaultConfig().View.MaxZoom
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, eris.Wrap(err, "config: parse yaml")
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			ShutdownSeconds: 10,
			MaxViews:        64,
		},
		Data: DataConfig{
			URL:       DefaultDataURL,
			IDColumn:  source.DefaultIDColumn,
			Delimiter: ",",
		},
		Cache: CacheConfig{
			ImageSizeMB:     128,
			ImageTTLMinutes: 10,
			QuerySize:       1024,
		},
		Render: RenderConfig{
			TileSize: viewport.TileSize,
		},
		View: ViewConfig{
			Width:         800,
			Height:        600,
			MinZoom:       0.5,
			MaxZoom:       3,
			HitRadius:     spatial.DefaultRadius,
			HitPolicy:     spatial.FirstInRadius.String(),
			ZoneThreshold: spatial.DefaultZoneThreshold,
			DefaultIndex:  cells.FieldEWBN.String(),
			Basemap:       string(engine.BasemapOSM),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// applyDefaults fills zero values. Zoom bounds are left alone.
func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Server.ShutdownSeconds == 0 {
		cfg.Server.ShutdownSeconds = defaults.Server.ShutdownSeconds
	}
	if cfg.Server.MaxViews == 0 {
		cfg.Server.MaxViews = defaults.Server.MaxViews
	}
	if cfg.Data.URL == "" {
		cfg.Data.URL = defaults.Data.URL
	}
	if cfg.Data.IDColumn == "" {
		cfg.Data.IDColumn = defaults.Data.IDColumn
	}
	if cfg.Data.Delimiter == "" {
		cfg.Data.Delimiter = defaults.Data.Delimiter
	}
	if cfg.Cache.ImageSizeMB == 0 {
		cfg.Cache.ImageSizeMB = defaults.Cache.ImageSizeMB
	}
	if cfg.Cache.ImageTTLMinutes == 0 {
		cfg.Cache.ImageTTLMinutes = defaults.Cache.ImageTTLMinutes
	}
	if cfg.Cache.QuerySize == 0 {
		cfg.Cache.QuerySize = defaults.Cache.QuerySize
	}
	if cfg.Render.TileSize == 0 {
		cfg.Render.TileSize = defaults.Render.TileSize
	}
	if cfg.View.Width == 0 {
		cfg.View.Width = defaults.View.Width
	}
	if cfg.View.Height == 0 {
		cfg.View.Height = defaults.View.Height
	}
	if cfg.View.HitRadius == 0 {
		cfg.View.HitRadius = defaults.View.HitRadius
	}
	if cfg.View.HitPolicy == "" {
		cfg.View.HitPolicy = defaults.View.HitPolicy
	}
	if cfg.View.ZoneThreshold == 0 {
		cfg.View.ZoneThreshold = defaults.View.ZoneThreshold
	}
	if cfg.View.DefaultIndex == "" {
		cfg.View.DefaultIndex = defaults.View.DefaultIndex
	}
	if cfg.View.Basemap == "" {
		cfg.View.Basemap = defaults.View.Basemap
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.View.MinZoom < 0 || c.View.MaxZoom < 0 {
		return eris.New("config: zoom bounds must not be negative")
	}
	if c.View.MinZoom > 0 && c.View.MaxZoom > 0 && c.View.MinZoom > c.View.MaxZoom {
		return eris.Errorf("config: min_zoom %g exceeds max_zoom %g", c.View.MinZoom, c.View.MaxZoom)
	}
	if c.Render.TileSize != viewport.TileSize {
		return eris.Errorf("config: tile_size must be %d, got %d", viewport.TileSize, c.Render.TileSize)
	}
	if len([]rune(c.Data.Delimiter)) != 1 {
		return eris.Errorf("config: delimiter %q must be a single character", c.Data.Delimiter)
	}
	if _, err := c.EngineConfig(); err != nil {
		return err
	}
	return nil
}

// EngineConfig converts the view section into engine settings.
func (c *Config) EngineConfig() (engine.Config, error) {
	policy, err := spatial.ParsePolicy(c.View.HitPolicy)
	if err != nil {
		return engine.Config{}, eris.Wrap(err, "config: hit_policy")
	}
	index, ok := cells.ParseField(c.View.DefaultIndex)
	if !ok {
		return engine.Config{}, eris.Errorf("config: unknown default_index %q", c.View.DefaultIndex)
	}
	basemap, err := engine.ParseBasemap(c.View.Basemap)
	if err != nil {
		return engine.Config{}, eris.Wrap(err, "config: basemap")
	}
	return engine.Config{
		Width:           c.View.Width,
		Height:          c.View.Height,
		Limits:          viewport.Limits{Min: c.View.MinZoom, Max: c.View.MaxZoom},
		HitRadius:       c.View.HitRadius,
		HitPolicy:       policy,
		ZoneThreshold:   c.View.ZoneThreshold,
		DefaultIndex:    index,
		Basemap:         basemap,
		ZoomAboutCursor: c.View.ZoomAboutCursor,
	}, nil
}

// SourceOptions converts the data section into parser options.
func (c *Config) SourceOptions() source.Options {
	return source.Options{
		IDColumn:  c.Data.IDColumn,
		Delimiter: []rune(c.Data.Delimiter)[0],
	}
}

// ImageTTL returns the image cache lifetime.
func (c *Config) ImageTTL() time.Duration {
	return time.Duration(c.Cache.ImageTTLMinutes) * time.Minute
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
