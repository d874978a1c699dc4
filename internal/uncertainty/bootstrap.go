package uncertainty

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/ugp/internal/engine"
	"github.com/ppiankov/ugp/internal/model"
)

// ErrNoPoints is returned when no engine run produced a point to aggregate
var ErrNoPoints = errors.New("bootstrap produced no points")

// IterationError reports the bootstrap iteration at which an engine failed
type IterationError struct {
	Iteration int
	Err       error
}

func (e *IterationError) Error() string {
	return fmt.Sprintf("bootstrap iteration %d: %v", e.Iteration, e.Err)
}

func (e *IterationError) Unwrap() error { return e.Err }

// Is matches ErrEngineExecution
func (e *IterationError) Is(target error) bool {
	return target == model.ErrEngineExecution
}

// Option configures a bootstrap run
type Option func(*options)

type options struct {
	logger      *slog.Logger
	onIteration func()
}

// WithLogger sets the logger used for run-level messages
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithIterationHook calls fn after every successful iteration. fn must be safe for concurrent use.
func WithIterationHook(fn func()) Option {
	return func(o *options) { o.onIteration = fn }
}

// Bootstrap estimates the sampling distribution of e's output by running it
// cfg.Iterations times on case-resampled copies of ds. Every point of every
// run is pooled into the returned ensemble.
//
// With cfg.Workers > 1 iterations run on a bounded worker group. Each
// iteration draws from its own stream derived from the master seed, so a
// seeded run yields the same points whatever the worker count.
func Bootstrap(ctx context.Context, e engine.Engine, ds model.ThermoDataset, cfg model.UncertaintyConfig, opts ...Option) (model.PTEnsemble, error) {
	if err := cfg.Validate(); err != nil {
		return model.PTEnsemble{}, err
	}

	o := options{logger: slog.Default(), onIteration: func() {}}
	for _, opt := range opts {
		opt(&o)
	}

	seed := NewSeed()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > cfg.Iterations {
		workers = cfg.Iterations
	}

	o.logger.Debug("bootstrap started",
		"iterations", cfg.Iterations, "workers", workers, "seed", seed, "analyses", ds.Len())

	var batches [][]model.PTPoint
	var err error
	if workers == 1 {
		batches, err = runSequential(ctx, e, ds, cfg.Iterations, seed, o.onIteration)
	} else {
		batches, err = runParallel(ctx, e, ds, cfg.Iterations, workers, seed, o.onIteration)
	}
	if err != nil {
		o.logger.Debug("bootstrap failed", "error", err)
		return model.PTEnsemble{}, err
	}

	var pooled []model.PTPoint
	for _, b := range batches {
		pooled = append(pooled, b...)
	}

	summary, err := Summarize(pooled, cfg)
	if err != nil {
		return model.PTEnsemble{}, err
	}

	o.logger.Debug("bootstrap finished", "points", len(pooled))

	return model.PTEnsemble{
		Results: pooled,
		Summary: summary,
		Diagnostics: map[string]any{
			model.DiagBootstrap: true,
			model.DiagSeed:      seed,
			model.DiagWorkers:   workers,
		},
	}, nil
}

func runSequential(ctx context.Context, e engine.Engine, ds model.ThermoDataset, iterations int, seed uint64, hook func()) ([][]model.PTPoint, error) {
	batches := make([][]model.PTPoint, iterations)
	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, model.Aborted(err)
		}
		points, err := runIteration(ctx, e, ds, seed, i)
		if err != nil {
			return nil, classify(ctx, err)
		}
		batches[i] = points
		hook()
	}
	return batches, nil
}

func runParallel(ctx context.Context, e engine.Engine, ds model.ThermoDataset, iterations, workers int, seed uint64, hook func()) ([][]model.PTPoint, error) {
	batches := make([][]model.PTPoint, iterations)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < iterations; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return model.Aborted(err)
			}
			points, err := runIteration(gctx, e, ds, seed, i)
			if err != nil {
				return err
			}
			// each goroutine owns slot i; joined after Wait
			batches[i] = points
			hook()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, classify(ctx, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, model.Aborted(err)
	}
	return batches, nil
}

func runIteration(ctx context.Context, e engine.Engine, ds model.ThermoDataset, seed uint64, i int) ([]model.PTPoint, error) {
	resampled := Resample(NewStream(seed, i), ds)
	ens, err := e.Run(ctx, resampled)
	if err != nil {
		if errors.Is(err, model.ErrAborted) {
			return nil, err
		}
		return nil, &IterationError{Iteration: i, Err: err}
	}
	return ens.Results, nil
}

// classify turns failures caused by the caller's cancellation into aborted-run errors
func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return model.Aborted(ctxErr)
	}
	return err
}

// Summarize computes the aggregate statistics of pooled bootstrap points
func Summarize(points []model.PTPoint, cfg model.UncertaintyConfig) (map[string]any, error) {
	if len(points) == 0 {
		return nil, model.WithKind(model.ErrEngineExecution, ErrNoPoints)
	}

	ens := model.PTEnsemble{Results: points}
	pressures := ens.Pressures()
	temps := ens.Temperatures()

	p := Describe(pressures)
	t := Describe(temps)
	pLow, pHigh := PercentileInterval(pressures, cfg.Confidence)
	tLow, tHigh := PercentileInterval(temps, cfg.Confidence)

	return map[string]any{
		model.SummaryPMean:      p.Mean,
		model.SummaryPStd:       p.StdDev,
		model.SummaryTMean:      t.Mean,
		model.SummaryTStd:       t.StdDev,
		model.SummaryIterations: cfg.Iterations,
		model.SummaryConfidence: cfg.Confidence,
		model.SummaryPCILow:     pLow,
		model.SummaryPCIHigh:    pHigh,
		model.SummaryTCILow:     tLow,
		model.SummaryTCIHigh:    tHigh,
		model.SummaryPoints:     len(points),
	}, nil
}
