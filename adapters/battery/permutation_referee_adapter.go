package battery

import (
	"context"
	"math/rand"
	"strconv"

	"golang.org/x/sync/errgroup"

	"gorevsig/adapters/stats/aggregate"
	"gorevsig/domain/stage"
	"gorevsig/ports"
)

// PermutationReferee builds per-compound null distributions by jointly
// shuffling every compound's observations and re-applying each compound's
// frozen formula to a group of its true size
type PermutationReferee struct {
	rngPort     ports.RNGPort
	numShuffles int
	workers     int
	seed        int64
}

// NewPermutationReferee creates a referee with default settings
func NewPermutationReferee(rngPort ports.RNGPort, seed int64) *PermutationReferee {
	return &PermutationReferee{
		rngPort:     rngPort,
		numShuffles: 1000,
		workers:     4,
		seed:        seed,
	}
}

// SetNumShuffles configures the number of permutation shuffles
func (pr *PermutationReferee) SetNumShuffles(num int) {
	if num < 1 {
		num = 1
	}
	pr.numShuffles = num
}

// SetWorkers bounds the number of permutations evaluated concurrently
func (pr *PermutationReferee) SetWorkers(num int) {
	if num < 1 {
		num = 1
	}
	pr.workers = num
}

// NumShuffles returns the configured permutation count
func (pr *PermutationReferee) NumShuffles() int {
	return pr.numShuffles
}

// NullDistributions returns null[g][p], the score compound g receives under
// permutation p. Each permutation draws from its own derived stream, so the
// result does not depend on scheduling.
func (pr *PermutationReferee) NullDistributions(ctx context.Context, groups []aggregate.Group) ([][]float64, error) {
	pool := make([]aggregate.Observation, 0)
	for _, g := range groups {
		pool = append(pool, g.Observations...)
	}

	null := make([][]float64, len(groups))
	for i := range null {
		null[i] = make([]float64, pr.numShuffles)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(pr.workers)
	for p := 0; p < pr.numShuffles; p++ {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			rng, err := pr.rngPort.Stream(egCtx, string(stage.StagePermutation), strconv.Itoa(p), pr.seed)
			if err != nil {
				return err
			}

			shuffled := shuffle(rng, pool)
			offset := 0
			for g, group := range groups {
				n := len(group.Observations)
				null[g][p] = group.Formula.Score(shuffled[offset : offset+n])
				offset += n
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return null, nil
}

// shuffle returns a Fisher-Yates permuted copy. Score, reverser flag and
// weight move together.
func shuffle(rng *rand.Rand, pool []aggregate.Observation) []aggregate.Observation {
	out := make([]aggregate.Observation, len(pool))
	copy(out, pool)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// EmpiricalPValue is the one-sided lower-tail permutation p-value
// (count(null <= observed) + 1) / (N + 1)
func EmpiricalPValue(observed float64, null []float64) float64 {
	atOrBelow := 0
	for _, v := range null {
		if v <= observed {
			atOrBelow++
		}
	}
	return float64(atOrBelow+1) / float64(len(null)+1)
}
