package engine

import (
	"context"
	"time"

	"github.com/ppiankov/ugp/internal/model"
)

// Waiter blocks until a call keyed by key may proceed
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

// Observer receives the outcome of every engine run
type Observer interface {
	ObserveRun(engine string, err error, elapsed time.Duration)
}

// Throttle delays each run of e until w admits it under key
func Throttle(e Engine, key string, w Waiter) Engine {
	if w == nil {
		return e
	}
	return Func(func(ctx context.Context, ds model.ThermoDataset) (model.PTEnsemble, error) {
		if err := w.Wait(ctx, key); err != nil {
			return model.PTEnsemble{}, model.Aborted(err)
		}
		return e.Run(ctx, ds)
	})
}

// Instrument reports every run of e to o under name
func Instrument(e Engine, name string, o Observer) Engine {
	if o == nil {
		return e
	}
	return Func(func(ctx context.Context, ds model.ThermoDataset) (model.PTEnsemble, error) {
		start := time.Now()
		ens, err := e.Run(ctx, ds)
		o.ObserveRun(name, err, time.Since(start))
		return ens, err
	})
}
