package uncertainty

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ppiankov/ugp/internal/engine"
	"github.com/ppiankov/ugp/internal/model"
)

// constEngine returns the same point for any input and counts its invocations
type constEngine struct {
	calls  atomic.Int32
	points int
}

func (c *constEngine) Run(ctx context.Context, ds model.ThermoDataset) (model.PTEnsemble, error) {
	c.calls.Add(1)
	n := c.points
	if n == 0 {
		n = 1
	}
	out := make([]model.PTPoint, n)
	for i := range out {
		out[i] = model.PTPoint{PressureGPa: 1.0, TemperatureC: 100.0, Method: "stub"}
	}
	return model.PTEnsemble{Results: out}, nil
}

// countingEngine reports how many analyses of the resample carry sampleID S00
func countingEngine() engine.Engine {
	return engine.Func(func(ctx context.Context, ds model.ThermoDataset) (model.PTEnsemble, error) {
		hits := 0
		for _, a := range ds.Analyses {
			if a.Metadata.SampleID == "S00" {
				hits++
			}
		}
		return model.PTEnsemble{Results: []model.PTPoint{{
			PressureGPa:  float64(hits),
			TemperatureC: 500 + float64(hits)*10,
			Method:       "counting",
		}}}, nil
	})
}

func seedPtr(v uint64) *uint64 { return &v }

func TestBootstrap_ConstantEngine(t *testing.T) {
	e := &constEngine{}
	cfg := model.UncertaintyConfig{Iterations: 50, Confidence: 0.95, Seed: seedPtr(1)}

	ens, err := Bootstrap(context.Background(), e, makeDataset(5), cfg)
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	if len(ens.Results) != 50 {
		t.Errorf("expected 50 pooled points, got %d", len(ens.Results))
	}
	want := map[string]float64{
		model.SummaryPMean: 1.0,
		model.SummaryPStd:  0.0,
		model.SummaryTMean: 100.0,
		model.SummaryTStd:  0.0,
	}
	for key, v := range want {
		if got := ens.Summary[key]; got != v {
			t.Errorf("%s: expected %v, got %v", key, v, got)
		}
	}
	if ens.Summary[model.SummaryIterations] != 50 {
		t.Errorf("expected iterations 50, got %v", ens.Summary[model.SummaryIterations])
	}
	if ens.Summary[model.SummaryConfidence] != 0.95 {
		t.Errorf("expected confidence 0.95, got %v", ens.Summary[model.SummaryConfidence])
	}
	if ens.Diagnostics[model.DiagBootstrap] != true {
		t.Errorf("expected bootstrap diagnostics flag, got %v", ens.Diagnostics)
	}
	if ens.Diagnostics[model.DiagSeed] != uint64(1) {
		t.Errorf("expected seed 1 recorded, got %v", ens.Diagnostics[model.DiagSeed])
	}
}

func TestBootstrap_PoolsEveryPoint(t *testing.T) {
	e := &constEngine{points: 3}
	cfg := model.UncertaintyConfig{Iterations: 4, Confidence: 0.9}

	ens, err := Bootstrap(context.Background(), e, makeDataset(3), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(ens.Results) != 12 {
		t.Errorf("expected 12 pooled points, got %d", len(ens.Results))
	}
	if ens.Summary[model.SummaryPoints] != 12 {
		t.Errorf("expected points 12, got %v", ens.Summary[model.SummaryPoints])
	}
}

func TestBootstrap_SingleIteration(t *testing.T) {
	ens, err := Bootstrap(context.Background(), &constEngine{}, makeDataset(1),
		model.UncertaintyConfig{Iterations: 1, Confidence: 0.95})
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	if ens.Summary[model.SummaryPStd] != 0.0 || ens.Summary[model.SummaryTStd] != 0.0 {
		t.Errorf("expected zero spread for one point, got %v", ens.Summary)
	}
}

func TestBootstrap_RejectsNonPositiveIterations(t *testing.T) {
	for _, n := range []int{0, -1, -100} {
		spy := &constEngine{}
		_, err := Bootstrap(context.Background(), spy, makeDataset(3),
			model.UncertaintyConfig{Iterations: n, Confidence: 0.95})

		if !errors.Is(err, model.ErrConfiguration) {
			t.Errorf("iterations=%d: expected ErrConfiguration, got %v", n, err)
		}
		if spy.calls.Load() != 0 {
			t.Errorf("iterations=%d: engine invoked %d times before validation", n, spy.calls.Load())
		}
	}
}

func TestBootstrap_RejectsBadConfidence(t *testing.T) {
	spy := &constEngine{}
	_, err := Bootstrap(context.Background(), spy, makeDataset(3),
		model.UncertaintyConfig{Iterations: 5, Confidence: 1.5})
	if !errors.Is(err, model.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
	if spy.calls.Load() != 0 {
		t.Error("engine must not run on invalid confidence")
	}
}

func TestBootstrap_FailureIdentifiesIteration(t *testing.T) {
	ds := makeDataset(5)
	seed := uint64(99)

	poisoned := engine.Func(func(ctx context.Context, in model.ThermoDataset) (model.PTEnsemble, error) {
		for _, a := range in.Analyses {
			if a.Metadata.SampleID == "S00" {
				return model.PTEnsemble{}, errors.New("unsupported composition")
			}
		}
		return model.PTEnsemble{Results: []model.PTPoint{{PressureGPa: 1, TemperatureC: 1}}}, nil
	})

	// first iteration whose resample contains S00
	want := -1
	for i := 0; i < 50 && want < 0; i++ {
		for _, id := range sampleIDs(Resample(NewStream(seed, i), ds)) {
			if id == "S00" {
				want = i
				break
			}
		}
	}
	if want < 0 {
		t.Fatal("test seed never draws S00")
	}

	ens, err := Bootstrap(context.Background(), poisoned, ds,
		model.UncertaintyConfig{Iterations: 50, Confidence: 0.95, Seed: &seed})
	if err == nil {
		t.Fatal("expected bootstrap to fail")
	}
	if !errors.Is(err, model.ErrEngineExecution) {
		t.Errorf("expected ErrEngineExecution, got %v", err)
	}
	var iterErr *IterationError
	if !errors.As(err, &iterErr) {
		t.Fatalf("expected IterationError, got %T", err)
	}
	if iterErr.Iteration != want {
		t.Errorf("expected failure at iteration %d, got %d", want, iterErr.Iteration)
	}
	if ens.Results != nil || ens.Summary != nil {
		t.Errorf("expected no partial ensemble, got %+v", ens)
	}
}

func TestBootstrap_ParallelFailure(t *testing.T) {
	var calls atomic.Int32
	failing := engine.Func(func(ctx context.Context, in model.ThermoDataset) (model.PTEnsemble, error) {
		if calls.Add(1) == 3 {
			return model.PTEnsemble{}, errors.New("numerical domain error")
		}
		return model.PTEnsemble{Results: []model.PTPoint{{PressureGPa: 1, TemperatureC: 1}}}, nil
	})

	_, err := Bootstrap(context.Background(), failing, makeDataset(4),
		model.UncertaintyConfig{Iterations: 40, Confidence: 0.95, Workers: 4})

	var iterErr *IterationError
	if !errors.As(err, &iterErr) {
		t.Fatalf("expected IterationError, got %v", err)
	}
	if iterErr.Iteration < 0 || iterErr.Iteration >= 40 {
		t.Errorf("iteration index %d out of range", iterErr.Iteration)
	}
}

func TestBootstrap_ParallelMatchesSequential(t *testing.T) {
	ds := makeDataset(6)
	seed := uint64(2024)

	seq, err := Bootstrap(context.Background(), countingEngine(), ds,
		model.UncertaintyConfig{Iterations: 64, Confidence: 0.9, Seed: &seed, Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	par, err := Bootstrap(context.Background(), countingEngine(), ds,
		model.UncertaintyConfig{Iterations: 64, Confidence: 0.9, Seed: &seed, Workers: 8})
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(seq.Results, par.Results); diff != "" {
		t.Errorf("parallel results differ from sequential (-seq +par):\n%s", diff)
	}
	for _, key := range []string{model.SummaryPMean, model.SummaryPStd, model.SummaryTMean, model.SummaryTStd} {
		if seq.Summary[key] != par.Summary[key] {
			t.Errorf("%s: sequential %v, parallel %v", key, seq.Summary[key], par.Summary[key])
		}
	}
	if par.Diagnostics[model.DiagWorkers] != 8 {
		t.Errorf("expected 8 workers recorded, got %v", par.Diagnostics[model.DiagWorkers])
	}
}

func TestBootstrap_SeedReplay(t *testing.T) {
	ds := makeDataset(6)
	cfg := model.UncertaintyConfig{Iterations: 30, Confidence: 0.95, Seed: seedPtr(5)}

	a, _ := Bootstrap(context.Background(), countingEngine(), ds, cfg)
	b, _ := Bootstrap(context.Background(), countingEngine(), ds, cfg)
	if diff := cmp.Diff(a.Summary, b.Summary); diff != "" {
		t.Errorf("seeded runs differ (-a +b):\n%s", diff)
	}
}

func TestBootstrap_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	spy := &constEngine{}
	_, err := Bootstrap(ctx, spy, makeDataset(3), model.UncertaintyConfig{Iterations: 10, Confidence: 0.95})
	if !errors.Is(err, model.ErrAborted) {
		t.Errorf("expected ErrAborted, got %v", err)
	}
	if spy.calls.Load() != 0 {
		t.Errorf("expected no engine calls, got %d", spy.calls.Load())
	}
}

func TestBootstrap_CancelledMidRun(t *testing.T) {
	for _, workers := range []int{1, 4} {
		ctx, cancel := context.WithCancel(context.Background())
		var calls atomic.Int32
		e := engine.Func(func(ctx context.Context, in model.ThermoDataset) (model.PTEnsemble, error) {
			if calls.Add(1) == 3 {
				cancel()
			}
			return model.PTEnsemble{Results: []model.PTPoint{{PressureGPa: 1, TemperatureC: 1}}}, nil
		})

		ens, err := Bootstrap(ctx, e, makeDataset(3),
			model.UncertaintyConfig{Iterations: 1000, Confidence: 0.95, Workers: workers})
		if !errors.Is(err, model.ErrAborted) || !errors.Is(err, context.Canceled) {
			t.Errorf("workers=%d: expected aborted run, got %v", workers, err)
		}
		if ens.Results != nil {
			t.Errorf("workers=%d: expected no partial ensemble", workers)
		}
		if calls.Load() >= 1000 {
			t.Errorf("workers=%d: expected cancellation to stop the loop early", workers)
		}
		cancel()
	}
}

func TestBootstrap_NoPoints(t *testing.T) {
	empty := engine.Func(func(ctx context.Context, in model.ThermoDataset) (model.PTEnsemble, error) {
		return model.PTEnsemble{}, nil
	})

	_, err := Bootstrap(context.Background(), empty, makeDataset(0),
		model.UncertaintyConfig{Iterations: 3, Confidence: 0.95})
	if !errors.Is(err, ErrNoPoints) || !errors.Is(err, model.ErrEngineExecution) {
		t.Errorf("expected ErrNoPoints as an execution error, got %v", err)
	}
}

func TestBootstrap_IterationHook(t *testing.T) {
	var n atomic.Int32
	_, err := Bootstrap(context.Background(), &constEngine{}, makeDataset(2),
		model.UncertaintyConfig{Iterations: 25, Confidence: 0.95, Workers: 3},
		WithIterationHook(func() { n.Add(1) }))
	if err != nil {
		t.Fatal(err)
	}
	if n.Load() != 25 {
		t.Errorf("expected 25 hook calls, got %d", n.Load())
	}
}
