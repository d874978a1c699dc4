package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ppiankov/ugp/internal/model"
)

// Run outcome labels
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusAborted = "aborted"
)

// Recorder collects engine and bootstrap metrics on a private registry.
// It implements engine.Observer.
type Recorder struct {
	registry   *prometheus.Registry
	runs       *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	iterations *prometheus.CounterVec
}

// NewRecorder creates a recorder with all collectors registered
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ugp_engine_runs_total",
			Help: "Engine invocations by outcome.",
		}, []string{"engine", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ugp_engine_run_duration_seconds",
			Help:    "Wall time of a single engine invocation.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"engine"}),
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ugp_bootstrap_iterations_total",
			Help: "Completed bootstrap iterations.",
		}, []string{"engine"}),
	}
	r.registry.MustRegister(r.runs, r.duration, r.iterations)
	return r
}

// ObserveRun records one engine invocation
func (r *Recorder) ObserveRun(engine string, err error, elapsed time.Duration) {
	r.runs.WithLabelValues(engine, statusOf(err)).Inc()
	r.duration.WithLabelValues(engine).Observe(elapsed.Seconds())
}

// IterationHook returns a function counting bootstrap iterations for engine
func (r *Recorder) IterationHook(engine string) func() {
	c := r.iterations.WithLabelValues(engine)
	return c.Inc
}

// WriteTextfile writes all metrics in the node_exporter textfile format
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, model.ErrAborted):
		return StatusAborted
	default:
		return StatusError
	}
}
