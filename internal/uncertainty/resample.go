package uncertainty

import (
	"math/rand/v2"

	"github.com/ppiankov/ugp/internal/model"
)

// Resample draws ds.Len() analyses uniformly with replacement from ds.
// The result is a new dataset; ds is left untouched. An empty dataset resamples to an empty one.
func Resample(rng *rand.Rand, ds model.ThermoDataset) model.ThermoDataset {
	n := ds.Len()
	picked := make([]model.MineralAnalysis, n)
	for i := range picked {
		picked[i] = ds.Analyses[rng.IntN(n)]
	}
	return ds.WithAnalyses(picked)
}

// NewStream returns the random source for one bootstrap iteration.
// Streams depend only on (seed, index), so iterations can run in any order
// or on any worker and still draw the same resamples.
func NewStream(seed uint64, index int) *rand.Rand {
	return rand.New(rand.NewPCG(splitmix64(seed), splitmix64(seed^uint64(index)+0x9e3779b97f4a7c15)))
}

// NewSeed returns a master seed from the runtime's entropy-seeded generator
func NewSeed() uint64 {
	return rand.Uint64()
}

// splitmix64 scrambles nearby inputs into unrelated PCG states
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
