package battery

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorevsig/adapters/rng"
	"gorevsig/adapters/stats/aggregate"
	"gorevsig/domain/core"
	"gorevsig/internal"
	"gorevsig/internal/errors"
)

func testFormula(contexts int) aggregate.Formula {
	return aggregate.Formula{
		ContextCount:  contexts,
		MinSignatures: 1,
		MinReversers:  1,
		Saturation:    aggregate.SaturationSoftLog,
		SaturationCap: 8,
		BonusRate:     0.1,
	}
}

// fixtureGroups is one strong reverser among noisy compounds
func fixtureGroups() []aggregate.Group {
	noise := rand.New(rand.NewSource(7))
	groups := []aggregate.Group{{
		CompoundID: "strong",
		Formula:    testFormula(2),
	}}
	for i := 0; i < 6; i++ {
		groups[0].Observations = append(groups[0].Observations, aggregate.Observation{Score: -5, Reverser: true, Weight: 1})
	}
	for c := 0; c < 10; c++ {
		g := aggregate.Group{CompoundID: core.CompoundID(fmt.Sprintf("noise-%02d", c)), Formula: testFormula(1)}
		for i := 0; i < 6; i++ {
			s := noise.NormFloat64() * 0.5
			g.Observations = append(g.Observations, aggregate.Observation{Score: s, Reverser: s < 0, Weight: 1})
		}
		groups = append(groups, g)
	}
	return groups
}

func newTestValidator(t *testing.T, mutate func(*Config)) *Validator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Permutations = 300
	cfg.BootstrapSamples = 300
	if mutate != nil {
		mutate(&cfg)
	}
	v, err := NewValidator(cfg, rng.NewSeededAdapter(), internal.Discard)
	require.NoError(t, err)
	return v
}

func TestPermutationReferee_NullIsDeterministic(t *testing.T) {
	ctx := context.Background()
	groups := fixtureGroups()

	referee := NewPermutationReferee(rng.NewSeededAdapter(), 99)
	referee.SetNumShuffles(200)

	first, err := referee.NullDistributions(ctx, groups)
	require.NoError(t, err)

	referee.SetWorkers(1)
	second, err := referee.NullDistributions(ctx, groups)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first, len(groups))
	assert.Len(t, first[0], 200)
}

func TestPermutationReferee_NullUsesCompoundFormula(t *testing.T) {
	// nothing in the pool is a reverser, so every permuted group evaluates
	// to the no-reverser score of 0
	groups := []aggregate.Group{
		{CompoundID: "a", Formula: testFormula(3), Observations: []aggregate.Observation{{Score: 1, Weight: 1}, {Score: 2, Weight: 1}}},
		{CompoundID: "b", Formula: testFormula(1), Observations: []aggregate.Observation{{Score: -1, Weight: 1}}},
	}
	referee := NewPermutationReferee(rng.NewSeededAdapter(), 1)
	referee.SetNumShuffles(50)

	null, err := referee.NullDistributions(context.Background(), groups)
	require.NoError(t, err)
	for _, dist := range null {
		for _, v := range dist {
			assert.Equal(t, 0.0, v)
		}
	}
}

func TestEmpiricalPValue(t *testing.T) {
	assert.InDelta(t, 0.6, EmpiricalPValue(-2, []float64{-3, -1, 0, -2}), 1e-12)
	assert.InDelta(t, 1.0/5, EmpiricalPValue(-10, []float64{-3, -1, 0, -2}), 1e-12)
	assert.InDelta(t, 1.0, EmpiricalPValue(0, nil), 1e-12)
}

func TestBenjaminiHochberg(t *testing.T) {
	q := BenjaminiHochberg([]float64{0.01, 0.04, 0.03, 0.005})
	want := []float64{0.02, 0.04, 0.04, 0.02}
	for i := range want {
		assert.InDelta(t, want[i], q[i], 1e-12)
	}

	assert.Empty(t, BenjaminiHochberg(nil))
}

func TestBenjaminiHochberg_MonotoneAndBounded(t *testing.T) {
	src := rand.New(rand.NewSource(3))
	for trial := 0; trial < 50; trial++ {
		p := make([]float64, 1+src.Intn(40))
		for i := range p {
			switch src.Intn(10) {
			case 0:
				p[i] = math.NaN()
			case 1:
				p[i] = 1.3
			default:
				p[i] = src.Float64() * src.Float64()
			}
		}
		q := BenjaminiHochberg(p)

		idx := make([]int, len(p))
		for i := range idx {
			idx[i] = i
		}
		key := func(i int) float64 {
			if math.IsNaN(p[i]) {
				return 1
			}
			return math.Min(1, p[i])
		}
		sort.SliceStable(idx, func(a, b int) bool { return key(idx[a]) < key(idx[b]) })

		for k, i := range idx {
			assert.GreaterOrEqual(t, q[i], 0.0)
			assert.LessOrEqual(t, q[i], 1.0)
			assert.GreaterOrEqual(t, q[i], key(i)-1e-12, "q is never below p")
			if k > 0 {
				assert.GreaterOrEqual(t, q[i], q[idx[k-1]]-1e-12)
			}
		}
	}
}

func TestBootstrapInterval_ContainsEstimate(t *testing.T) {
	src := rand.New(rand.NewSource(11))
	for trial := 0; trial < 30; trial++ {
		n := 2 + src.Intn(10)
		obs := make([]aggregate.Observation, n)
		for i := range obs {
			s := src.NormFloat64()
			obs[i] = aggregate.Observation{Score: s, Reverser: s < 0, Weight: src.Float64()}
		}
		f := testFormula(1 + src.Intn(3))
		f.Conflict = src.Intn(2) == 0

		iv := BootstrapInterval(rand.New(rand.NewSource(int64(trial))), f, obs, 200, 0.95)
		assert.Equal(t, f.Score(obs), iv.Estimate)
		assert.LessOrEqual(t, iv.Lower, iv.Estimate)
		assert.GreaterOrEqual(t, iv.Upper, iv.Estimate)
	}
}

func TestBootstrapInterval_Degenerate(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	f := testFormula(1)

	empty := BootstrapInterval(r, f, nil, 100, 0.95)
	assert.Equal(t, Interval{}, empty)
	assert.False(t, empty.ExcludesZero())

	single := BootstrapInterval(r, f, []aggregate.Observation{{Score: -3, Reverser: true, Weight: 1}}, 100, 0.95)
	assert.Equal(t, single.Estimate, single.Lower)
	assert.Equal(t, single.Estimate, single.Upper)
	assert.Less(t, single.Estimate, 0.0)
	assert.True(t, single.ExcludesZero())
}

func TestValidator_StrongReverserIsSignificant(t *testing.T) {
	groups := fixtureGroups()
	results, err := newTestValidator(t, nil).Validate(context.Background(), groups)
	require.NoError(t, err)
	require.Len(t, results, len(groups))

	strong := results[0]
	assert.Equal(t, core.CompoundID("strong"), strong.CompoundID)
	assert.Equal(t, groups[0].Formula.Score(groups[0].Observations), strong.Observed)
	assert.Less(t, strong.PValue, 0.05)
	assert.Less(t, strong.QValue, 0.1)
	assert.Less(t, strong.EffectZ, 0.0)
	assert.Less(t, strong.NormalPValue, 0.5)
	assert.True(t, strong.CIExcludesZero)
	assert.Equal(t, MethodBH, strong.FDRMethod)
	assert.Equal(t, 300, strong.Permutations)

	for _, r := range results {
		assert.GreaterOrEqual(t, r.PValue, 1.0/301)
		assert.LessOrEqual(t, r.PValue, 1.0)
		assert.GreaterOrEqual(t, r.QValue, r.PValue-1e-12)
		assert.LessOrEqual(t, r.CILower, r.Observed)
		assert.GreaterOrEqual(t, r.CIUpper, r.Observed)
	}
}

func TestValidator_DeterministicAcrossWorkers(t *testing.T) {
	groups := fixtureGroups()

	first, err := newTestValidator(t, func(c *Config) { c.Workers = 1 }).Validate(context.Background(), groups)
	require.NoError(t, err)
	second, err := newTestValidator(t, func(c *Config) { c.Workers = 8 }).Validate(context.Background(), groups)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestValidator_EmptyCompound(t *testing.T) {
	groups := append(fixtureGroups(), aggregate.Group{CompoundID: "zz-empty", Formula: testFormula(0)})

	results, err := newTestValidator(t, nil).Validate(context.Background(), groups)
	require.NoError(t, err)

	empty := results[len(results)-1]
	assert.Equal(t, 1.0, empty.PValue)
	assert.Equal(t, 1.0, empty.QValue)
	assert.Equal(t, 0.0, empty.EffectZ)
	assert.Equal(t, 0.0, empty.CILower)
	assert.Equal(t, 0.0, empty.CIUpper)
}

func TestValidator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestValidator(t, nil).Validate(ctx, fixtureGroups())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero permutations", func(c *Config) { c.Permutations = 0 }},
		{"zero bootstrap", func(c *Config) { c.BootstrapSamples = -1 }},
		{"level of one", func(c *Config) { c.ConfidenceLevel = 1 }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewValidator(cfg, rng.NewSeededAdapter(), internal.Discard)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))
		})
	}
}
