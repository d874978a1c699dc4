package engine

import (
	"context"
	"fmt"

	"github.com/ppiankov/ugp/internal/model"
)

// Built-in engine names
const (
	ThermoCalc = "thermocalc"
	PerpleX    = "perplex"
	PyWerami   = "pywerami"
)

// RegisterBuiltins registers every built-in engine with r.
// Call it once during startup, before anything resolves engines.
func RegisterBuiltins(r *Registry) error {
	builtins := []struct {
		name    string
		factory Factory
	}{
		{ThermoCalc, placeholderFactory("THERMOCALC", 0.8, 650.0)},
		{PerpleX, placeholderFactory("Perple_X", 0.9, 700.0)},
		{PyWerami, placeholderFactory("PyWerami", 1.0, 720.0)},
	}

	for _, b := range builtins {
		if err := r.Register(b.name, b.factory); err != nil {
			return fmt.Errorf("register %s: %w", b.name, err)
		}
	}
	return nil
}

// PlaceholderEngine stands in for a back-end whose coupling is not implemented.
// It validates its input and always reports the same point, flagged as a placeholder.
type PlaceholderEngine struct {
	method      string
	pressureGPa float64
	tempC       float64
	dataDir     string
}

func placeholderFactory(method string, pressureGPa, tempC float64) Factory {
	return func(cfg model.Config) (Engine, error) {
		return &PlaceholderEngine{
			method:      method,
			pressureGPa: pressureGPa,
			tempC:       tempC,
			dataDir:     cfg.DataDir,
		}, nil
	}
}

// Run validates ds and returns the fixed placeholder point
func (e *PlaceholderEngine) Run(ctx context.Context, ds model.ThermoDataset) (model.PTEnsemble, error) {
	if err := ctx.Err(); err != nil {
		return model.PTEnsemble{}, model.Aborted(err)
	}
	if ds.Len() == 0 {
		return model.PTEnsemble{}, fmt.Errorf("%s: %w: dataset has no analyses", e.method, model.ErrEngineExecution)
	}
	for i, a := range ds.Analyses {
		if err := a.Validate(); err != nil {
			return model.PTEnsemble{}, fmt.Errorf("%s: %w: analysis %d: %w", e.method, model.ErrEngineExecution, i, err)
		}
	}

	point := model.PTPoint{
		PressureGPa:  e.pressureGPa,
		TemperatureC: e.tempC,
		Method:       e.method,
		Provenance: map[string]any{
			"note":     "placeholder",
			"analyses": ds.Len(),
		},
	}
	if e.dataDir != "" {
		point.Provenance["data_dir"] = e.dataDir
	}

	return model.PTEnsemble{
		Results:     []model.PTPoint{point},
		Summary:     map[string]any{model.SummaryStatus: "not-implemented"},
		Diagnostics: map[string]any{},
	}, nil
}
