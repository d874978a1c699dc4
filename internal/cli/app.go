package cli

import (
	"fmt"

	"github.com/ppiankov/ugp/internal/cache"
	"github.com/ppiankov/ugp/internal/engine"
	"github.com/ppiankov/ugp/internal/logging"
	"github.com/ppiankov/ugp/internal/metrics"
	"github.com/ppiankov/ugp/internal/model"
	"github.com/ppiankov/ugp/internal/pipeline"
	"github.com/ppiankov/ugp/internal/worker"
)

// app holds the components one command invocation works with
type app struct {
	cfg      *model.Config
	registry *engine.Registry
	recorder *metrics.Recorder
	pipeline *pipeline.Pipeline
}

// newRegistry returns a registry holding the built-in engines
func newRegistry(defaultEngine string) (*engine.Registry, error) {
	r := engine.NewRegistry(defaultEngine)
	if err := engine.RegisterBuiltins(r); err != nil {
		return nil, err
	}
	return r, nil
}

// newApp wires registry, metrics, throttle and cache around a pipeline
func newApp(cfg *model.Config, useCache bool) (*app, error) {
	registry, err := newRegistry(cfg.DefaultEngine)
	if err != nil {
		return nil, err
	}

	recorder := metrics.NewRecorder()
	opts := []pipeline.Option{
		pipeline.WithObserver(recorder),
		pipeline.WithLogger(logging.New("pipeline")),
	}

	if cfg.Engines.Throttled() {
		opts = append(opts, pipeline.WithLimiter(worker.NewEngineLimiter(cfg.Engines)))
	}

	if useCache && cfg.Cache.Enabled {
		opts = append(opts, pipeline.WithCache(cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.CacheDir, cfg.Cache.DiskTTL), 0))
	}

	return &app{
		cfg:      cfg,
		registry: registry,
		recorder: recorder,
		pipeline: pipeline.NewPipeline(registry, opts...),
	}, nil
}

// flushMetrics writes the metrics textfile when one is configured
func (a *app) flushMetrics() error {
	if a.cfg.Metrics.File == "" {
		return nil
	}
	if err := a.recorder.WriteTextfile(a.cfg.Metrics.File); err != nil {
		return fmt.Errorf("flush metrics: %w", err)
	}
	return nil
}
