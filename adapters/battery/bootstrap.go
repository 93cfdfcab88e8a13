package battery

import (
	"math"
	"math/rand"

	"gorevsig/adapters/stats/aggregate"
	"gorevsig/adapters/stats/robust"
)

// Interval is a bootstrap confidence interval around an estimate
type Interval struct {
	Estimate float64
	Lower    float64
	Upper    float64
}

// ExcludesZero reports whether zero lies strictly outside the interval
func (iv Interval) ExcludesZero() bool {
	return iv.Upper < 0 || iv.Lower > 0
}

// BootstrapInterval resamples obs with replacement and applies the formula
// to each replicate; the percentile method gives the bounds. The interval is
// widened to contain the estimate. Zero observations give [0,0] and a single
// observation gives [estimate, estimate].
func BootstrapInterval(rng *rand.Rand, formula aggregate.Formula, obs []aggregate.Observation, samples int, level float64) Interval {
	estimate := formula.Score(obs)
	switch len(obs) {
	case 0:
		return Interval{}
	case 1:
		return Interval{Estimate: estimate, Lower: estimate, Upper: estimate}
	}

	replicates := make([]float64, samples)
	resample := make([]aggregate.Observation, len(obs))
	for b := range replicates {
		for i := range resample {
			resample[i] = obs[rng.Intn(len(obs))]
		}
		replicates[b] = formula.Score(resample)
	}

	alpha := 1 - level
	lower := robust.Quantile(replicates, alpha/2)
	upper := robust.Quantile(replicates, 1-alpha/2)
	return Interval{
		Estimate: estimate,
		Lower:    math.Min(lower, estimate),
		Upper:    math.Max(upper, estimate),
	}
}
