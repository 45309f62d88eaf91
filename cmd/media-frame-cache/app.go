package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/vertextoedge/media-frame-cache/internal/adapter/sqlite"
	"github.com/vertextoedge/media-frame-cache/internal/config"
	"github.com/vertextoedge/media-frame-cache/internal/domain/event"
	"github.com/vertextoedge/media-frame-cache/internal/reader"
	"github.com/vertextoedge/media-frame-cache/internal/reader/builtin"
	"github.com/vertextoedge/media-frame-cache/internal/reader/ffmpeg"
	"github.com/vertextoedge/media-frame-cache/internal/reader/plugin"
	"github.com/vertextoedge/media-frame-cache/internal/sequence"
	"github.com/vertextoedge/media-frame-cache/internal/service/maintenance"
)

// app holds the components shared by every subcommand
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
	fs     afero.Fs

	dispatcher *event.InMemoryDispatcher
	metrics    *event.MetricsHandler
	indicator  *event.CacheIndicator

	registry *reader.Registry
	plugins  *plugin.LoadResult
}

func newApp(cfg *config.Config, logger *zap.Logger, out io.Writer) *app {
	dispatcher := event.NewInMemoryDispatcher(false).WithLogger(logger)
	metrics := event.NewMetricsHandler()
	indicator := event.NewCacheIndicator()
	dispatcher.Subscribe(event.NewLoggingHandler(logger))
	dispatcher.Subscribe(metrics)
	dispatcher.Subscribe(indicator)

	// Built-ins register first so plugins cannot shadow them.
	registry := reader.NewRegistry(logger)
	builtin.Register(registry)
	ffmpeg.Register(registry, &ffmpeg.Config{
		ProbeTimeout: cfg.Movie.GetProbeTimeout(),
		SeekRetries:  cfg.Movie.SeekRetries,
	}, logger)
	plugins := plugin.NewLoader(cfg.Plugins.SearchPath, logger).Load(registry)

	return &app{
		cfg:        cfg,
		logger:     logger,
		out:        out,
		fs:         afero.NewOsFs(),
		dispatcher: dispatcher,
		metrics:    metrics,
		indicator:  indicator,
		registry:   registry,
		plugins:    plugins,
	}
}

func (a *app) aggregator(includeHidden bool) *sequence.Aggregator {
	return sequence.NewAggregator(a.fs, a.registry, a.dispatcher,
		&sequence.Config{IncludeHidden: includeHidden}, a.logger)
}

// openCatalog opens the sqlite catalog and a maintenance service over it.
// The caller closes the returned store.
func (a *app) openCatalog(minAge time.Duration) (*sqlite.Store, *maintenance.Service, error) {
	store, err := sqlite.Open(a.cfg.Catalog.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open catalog %s: %w", a.cfg.Catalog.Path, err)
	}
	svc := maintenance.New(&maintenance.Config{
		PruneInterval: a.cfg.Catalog.GetPruneInterval(),
		MinAge:        minAge,
	}, store.Catalog(), a.fs, a.logger)
	return store, svc, nil
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
