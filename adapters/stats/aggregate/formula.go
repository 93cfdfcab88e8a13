package aggregate

import (
	"math"

	"gorevsig/adapters/stats/robust"
	"gorevsig/domain/ranking"
)

// Observation is one filtered signature as the formula sees it
type Observation struct {
	Score    float64
	Reverser bool
	Weight   float64
}

// Formula is the per-compound aggregation with the compound's structural
// facts frozen. The observed score and every permutation or bootstrap
// replicate go through Evaluate, so null and observed statistics always
// share one definition.
type Formula struct {
	ContextCount  int
	Conflict      bool
	MinSignatures int
	MinReversers  int
	Saturation    SaturationMode
	SaturationCap float64
	BonusRate     float64
}

// Evaluation is the outcome of applying a Formula to a set of observations
type Evaluation struct {
	Score            float64
	Median           float64
	ReverserFraction float64
	Reversers        int
	Central          ranking.CentralTendency
	SampleSizeFactor float64
	DiversityBonus   float64
	Status           ranking.Status
}

// Evaluate computes central × p_rev × sample-size factor × diversity bonus
func (f Formula) Evaluate(obs []Observation) Evaluation {
	n := len(obs)
	ev := Evaluation{Central: ranking.CentralNone}

	if n == 0 || n < f.MinSignatures {
		ev.Status = ranking.StatusTooFewSignatures
		return ev
	}

	scores := make([]float64, n)
	weights := make([]float64, n)
	for i, o := range obs {
		scores[i] = o.Score
		weights[i] = o.Weight
		if o.Reverser {
			ev.Reversers++
		}
	}
	ev.ReverserFraction = float64(ev.Reversers) / float64(n)
	ev.Median = robust.Median(scores)

	if ev.Reversers < max(1, f.MinReversers) {
		ev.Status = ranking.StatusNoReverserContext
		return ev
	}

	var central float64
	if f.Conflict {
		central = robust.QuantileExtremum(scores)
		ev.Central = ranking.CentralQuantileExtremum
	} else {
		central = robust.WeightedMedian(scores, weights)
		ev.Central = ranking.CentralWeightedMedian
	}

	ev.SampleSizeFactor = f.sampleSizeFactor(n)
	ev.DiversityBonus = f.diversityBonus()
	ev.Score = central * ev.ReverserFraction * ev.SampleSizeFactor * ev.DiversityBonus
	ev.Status = ranking.StatusOK
	return ev
}

// Score is Evaluate(obs).Score
func (f Formula) Score(obs []Observation) float64 {
	return f.Evaluate(obs).Score
}

func (f Formula) sampleSizeFactor(n int) float64 {
	if f.SaturationCap <= 0 {
		return 1
	}
	if f.Saturation == SaturationHardSqrt {
		return math.Min(1, math.Sqrt(float64(n)/f.SaturationCap))
	}
	return math.Min(1, math.Log1p(float64(n))/math.Log1p(f.SaturationCap))
}

func (f Formula) diversityBonus() float64 {
	if f.Conflict {
		return 1
	}
	return 1 + f.BonusRate*float64(max(0, f.ContextCount-1))
}
