package main

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/zfe-tiles/server/internal/api"
	"github.com/zfe-tiles/server/internal/cache"
	"github.com/zfe-tiles/server/internal/config"
	"github.com/zfe-tiles/server/internal/data/cells"
	"github.com/zfe-tiles/server/internal/render"
	"github.com/zfe-tiles/server/internal/service"
)

// app holds the components shared by the commands.
type app struct {
	cache    *cache.Manager
	renderer *render.Renderer
	data     *service.DataService
	registry *api.ViewRegistry
}

func newApp(c *config.Config) (*app, error) {
	engineCfg, err := c.EngineConfig()
	if err != nil {
		return nil, err
	}

	cacheManager, err := cache.NewManager(cache.Config{
		ImageCacheSizeMB: c.Cache.ImageSizeMB,
		ImageTTL:         c.ImageTTL(),
		QueryCacheSize:   c.Cache.QuerySize,
	})
	if err != nil {
		return nil, eris.Wrap(err, "init cache")
	}

	renderer := render.New(render.Config{TileSize: c.Render.TileSize})
	data := service.NewDataService(c.Data.URL, service.SourceLoader(c.Data.URL, c.SourceOptions()))
	// Registered before any view so a reload drops stale entries first.
	data.Subscribe(func(*cells.Dataset) {
		if err := cacheManager.Purge(); err != nil {
			zap.L().Warn("purge cache", zap.Error(err))
		}
	})

	registry := api.NewViewRegistry(c.Server.MaxViews, func(id string) *service.ViewService {
		return service.NewViewService(service.ViewServiceConfig{
			ID:       id,
			Engine:   engineCfg,
			Data:     data,
			Cache:    cacheManager,
			Renderer: renderer,
		})
	})

	return &app{
		cache:    cacheManager,
		renderer: renderer,
		data:     data,
		registry: registry,
	}, nil
}

func (a *app) Close() error {
	return a.cache.Close()
}
