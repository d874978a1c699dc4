package engine

import (
	"context"

	"github.com/ppiankov/ugp/internal/model"
)

// Engine is a pluggable pressure/temperature calculation strategy.
//
// Run must not mutate ds. Engines without mutable state must tolerate
// concurrent Run calls, which parallel bootstrap relies on.
type Engine interface {
	Run(ctx context.Context, ds model.ThermoDataset) (model.PTEnsemble, error)
}

// Factory builds a configured engine
type Factory func(cfg model.Config) (Engine, error)

// Func adapts a plain function to the Engine interface
type Func func(ctx context.Context, ds model.ThermoDataset) (model.PTEnsemble, error)

// Run calls f
func (f Func) Run(ctx context.Context, ds model.ThermoDataset) (model.PTEnsemble, error) {
	return f(ctx, ds)
}
