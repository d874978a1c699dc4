package uncertainty

import (
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Moments holds the location and spread of a sample
type Moments struct {
	Mean   float64
	StdDev float64 // population standard deviation
}

// Describe returns the mean and population standard deviation of values.
// StdDev is 0 when fewer than two values exist. values must not be empty.
func Describe(values []float64) Moments {
	if len(values) < 2 {
		return Moments{Mean: stat.Mean(values, nil)}
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	return Moments{Mean: mean, StdDev: std}
}

// PercentileInterval returns the central interval covering confidence of the
// empirical distribution, e.g. the 2.5th and 97.5th percentiles for 0.95.
func PercentileInterval(values []float64, confidence float64) (low, high float64) {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	tail := (1 - confidence) / 2
	return stat.Quantile(tail, stat.LinInterp, sorted, nil),
		stat.Quantile(1-tail, stat.LinInterp, sorted, nil)
}
