package model

// Summary keys shared with existing result consumers. Do not rename.
const (
	SummaryPMean      = "p_mean_gpa"
	SummaryPStd       = "p_std_gpa"
	SummaryTMean      = "t_mean_c"
	SummaryTStd       = "t_std_c"
	SummaryIterations = "iterations"
	SummaryConfidence = "confidence"

	// Percentile interval at the configured confidence level
	SummaryPCILow  = "p_ci_low_gpa"
	SummaryPCIHigh = "p_ci_high_gpa"
	SummaryTCILow  = "t_ci_low_c"
	SummaryTCIHigh = "t_ci_high_c"
	SummaryPoints  = "points"
	SummaryStatus  = "status"
)

// Diagnostics keys
const (
	DiagBootstrap = "bootstrap"
	DiagEngine    = "engine"
	DiagSeed      = "seed"
	DiagWorkers   = "workers"
	DiagCacheHit  = "cache_hit"
)

// PTPoint is one computed pressure/temperature estimate
type PTPoint struct {
	PressureGPa  float64        `json:"pressure_gpa"`
	TemperatureC float64        `json:"temperature_c"`
	Method       string         `json:"method"`
	Provenance   map[string]any `json:"provenance"`
}

// PTEnsemble is the unit of result exchange: points plus summary and diagnostics
type PTEnsemble struct {
	Summary     map[string]any `json:"summary"`
	Diagnostics map[string]any `json:"diagnostics"`
	Results     []PTPoint      `json:"results"`
}

// Normalize returns a copy with nil collections replaced by empty ones.
// Maps are copied so annotating the result does not touch the source.
func (e PTEnsemble) Normalize() PTEnsemble {
	out := PTEnsemble{
		Summary:     copyMap(e.Summary),
		Diagnostics: copyMap(e.Diagnostics),
		Results:     e.Results,
	}
	if out.Results == nil {
		out.Results = []PTPoint{}
	}
	return out
}

// Pressures returns the pressure of every point, in order
func (e PTEnsemble) Pressures() []float64 {
	out := make([]float64, len(e.Results))
	for i, p := range e.Results {
		out[i] = p.PressureGPa
	}
	return out
}

// Temperatures returns the temperature of every point, in order
func (e PTEnsemble) Temperatures() []float64 {
	out := make([]float64, len(e.Results))
	for i, p := range e.Results {
		out[i] = p.TemperatureC
	}
	return out
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
