package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/ugp/internal/cache"
	"github.com/ppiankov/ugp/internal/engine"
	"github.com/ppiankov/ugp/internal/ingest"
	"github.com/ppiankov/ugp/internal/logging"
	"github.com/ppiankov/ugp/internal/model"
	"github.com/ppiankov/ugp/internal/uncertainty"
)

// IterationCounter is implemented by observers that also count bootstrap iterations
type IterationCounter interface {
	IterationHook(engine string) func()
}

// Pipeline resolves an engine and runs it on a dataset, directly or under bootstrap
type Pipeline struct {
	registry *engine.Registry
	cache    cache.Cache
	cacheTTL time.Duration
	limiter  engine.Waiter
	observer engine.Observer
	logger   *slog.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithCache stores deterministic results in c for ttl (zero uses the cache default)
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(p *Pipeline) {
		p.cache = c
		p.cacheTTL = ttl
	}
}

// WithLimiter throttles every engine run through w, keyed by engine name
func WithLimiter(w engine.Waiter) Option {
	return func(p *Pipeline) { p.limiter = w }
}

// WithObserver reports every engine run to o
func WithObserver(o engine.Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithLogger sets the pipeline logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a pipeline resolving engines from registry
func NewPipeline(registry *engine.Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry: registry,
		logger:   logging.New("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes engineName (the registry default when empty) on ds.
//
// When cfg.Uncertainty.Enabled is set and unc is non-nil the engine runs only
// under bootstrap; otherwise it runs once on ds. Both branches return an
// ensemble with non-nil summary, diagnostics and results.
func (p *Pipeline) Run(ctx context.Context, ds model.ThermoDataset, engineName string, cfg model.Config, unc *model.UncertaintyConfig) (model.PTEnsemble, error) {
	name := engineName
	if name == "" {
		name = p.registry.Default()
	}

	factory, err := p.registry.Resolve(name)
	if err != nil {
		return model.PTEnsemble{}, err
	}

	bootstrap := cfg.Uncertainty.Enabled && unc != nil
	if bootstrap {
		if err := unc.Validate(); err != nil {
			return model.PTEnsemble{}, err
		}
	}

	logger := p.logger.With("engine", name, "bootstrap", bootstrap, "analyses", ds.Len())

	key, cacheable := p.cacheKey(name, ds, cfg, unc, bootstrap)
	if cacheable {
		if ens, ok := p.lookup(key); ok {
			logger.Debug("cache hit", "key", key)
			return ens, nil
		}
	}

	e, err := factory(cfg)
	if err != nil {
		return model.PTEnsemble{}, model.WithKind(model.ErrConfiguration, fmt.Errorf("construct engine %s: %w", name, err))
	}
	e = engine.Instrument(engine.Throttle(e, name, p.limiter), name, p.observer)

	start := time.Now()
	var ens model.PTEnsemble
	if bootstrap {
		ens, err = p.runBootstrap(ctx, e, name, ds, *unc, logger)
	} else {
		ens, err = p.runDirect(ctx, e, ds)
	}
	if err != nil {
		logger.Debug("run failed", "error", err)
		return model.PTEnsemble{}, err
	}

	ens = ens.Normalize()
	annotate(ens.Diagnostics, model.DiagBootstrap, bootstrap)
	annotate(ens.Diagnostics, model.DiagEngine, name)

	logger.Debug("run finished", "points", len(ens.Results), "elapsed", time.Since(start))

	if cacheable {
		ens.Diagnostics[model.DiagCacheHit] = false
		p.store(key, ens, logger)
	}
	return ens, nil
}

func (p *Pipeline) runDirect(ctx context.Context, e engine.Engine, ds model.ThermoDataset) (model.PTEnsemble, error) {
	if err := ctx.Err(); err != nil {
		return model.PTEnsemble{}, model.Aborted(err)
	}
	ens, err := e.Run(ctx, ds)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrAborted):
		return model.PTEnsemble{}, err
	case ctx.Err() != nil:
		return model.PTEnsemble{}, model.Aborted(ctx.Err())
	default:
		return model.PTEnsemble{}, model.WithKind(model.ErrEngineExecution, err)
	}
	return ens, nil
}

func (p *Pipeline) runBootstrap(ctx context.Context, e engine.Engine, name string, ds model.ThermoDataset, unc model.UncertaintyConfig, logger *slog.Logger) (model.PTEnsemble, error) {
	opts := []uncertainty.Option{uncertainty.WithLogger(logger)}
	if counter, ok := p.observer.(IterationCounter); ok {
		opts = append(opts, uncertainty.WithIterationHook(counter.IterationHook(name)))
	}
	return uncertainty.Bootstrap(ctx, e, ds, unc, opts...)
}

// annotate sets key unless the engine already reported it
func annotate(m map[string]any, key string, value any) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}

// Loader reads a dataset by path or URL
type Loader interface {
	Load(ctx context.Context, source string) (model.ThermoDataset, error)
}

// FileRunner runs a fixed engine and configuration on dataset files
type FileRunner struct {
	Pipeline    *Pipeline
	Loader      Loader // nil reads local files only
	Engine      string
	Config      model.Config
	Uncertainty *model.UncertaintyConfig
}

// RunFile reads the dataset at path and runs it
func (r *FileRunner) RunFile(ctx context.Context, path string) (model.PTEnsemble, error) {
	var ds model.ThermoDataset
	var err error
	if r.Loader != nil {
		ds, err = r.Loader.Load(ctx, path)
	} else {
		ds, err = ingest.Read(path)
	}
	if err != nil {
		return model.PTEnsemble{}, err
	}
	return r.Pipeline.Run(ctx, ds, r.Engine, r.Config, r.Uncertainty)
}
