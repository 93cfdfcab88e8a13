// Package battery is the statistical validation layer: permutation nulls
// built with the aggregation formula itself, Benjamini-Hochberg correction
// and bootstrap confidence intervals.
package battery

import (
	"context"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"

	"gorevsig/adapters/stats/aggregate"
	"gorevsig/adapters/stats/robust"
	"gorevsig/domain/core"
	"gorevsig/domain/ranking"
	"gorevsig/domain/stage"
	"gorevsig/internal"
	"gorevsig/internal/errors"
	"gorevsig/ports"
)

// negligibleStdDev is the null spread below which z is reported as 0
const negligibleStdDev = 1e-12

// Config holds validation parameters
type Config struct {
	Permutations     int
	BootstrapSamples int
	ConfidenceLevel  float64
	Seed             int64
	Workers          int
}

// DefaultConfig returns the default validation configuration
func DefaultConfig() Config {
	return Config{
		Permutations:     1000,
		BootstrapSamples: 1000,
		ConfidenceLevel:  0.95,
		Seed:             42,
		Workers:          4,
	}
}

// Validate rejects non-positive counts and levels outside (0,1)
func (c Config) Validate() error {
	if c.Permutations <= 0 {
		return errors.ConfigInvalidf(core.ErrNonPositive, "permutations must be positive, got %d", c.Permutations)
	}
	if c.BootstrapSamples <= 0 {
		return errors.ConfigInvalidf(core.ErrNonPositive, "bootstrap samples must be positive, got %d", c.BootstrapSamples)
	}
	if !(c.ConfidenceLevel > 0 && c.ConfidenceLevel < 1) {
		return errors.ConfigInvalidf(core.ErrOutOfRange, "confidence level must be in (0, 1), got %v", c.ConfidenceLevel)
	}
	if c.Workers <= 0 {
		return errors.ConfigInvalidf(core.ErrNonPositive, "workers must be positive, got %d", c.Workers)
	}
	return nil
}

// Validator annotates aggregated compounds with significance results
type Validator struct {
	config  Config
	rngPort ports.RNGPort
	referee *PermutationReferee
	logger  *internal.Logger
}

// NewValidator creates a validator after validating its configuration
func NewValidator(config Config, rngPort ports.RNGPort, logger *internal.Logger) (*Validator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if rngPort == nil {
		return nil, errors.ConfigInvalid("validator requires an rng port")
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}

	referee := NewPermutationReferee(rngPort, config.Seed)
	referee.SetNumShuffles(config.Permutations)
	referee.SetWorkers(config.Workers)

	return &Validator{
		config:  config,
		rngPort: rngPort,
		referee: referee,
		logger:  logger.With("battery"),
	}, nil
}

// Config returns the validator configuration
func (v *Validator) Config() Config {
	return v.config
}

// Validate returns one significance row per group, in group order
func (v *Validator) Validate(ctx context.Context, groups []aggregate.Group) ([]ranking.SignificanceResult, error) {
	null, err := v.referee.NullDistributions(ctx, groups)
	if err != nil {
		return nil, errors.Wrap(err, "permutation null")
	}

	intervals, err := v.intervals(ctx, groups)
	if err != nil {
		return nil, errors.Wrap(err, "bootstrap intervals")
	}

	results := make([]ranking.SignificanceResult, len(groups))
	pValues := make([]float64, len(groups))
	for i, g := range groups {
		observed := intervals[i].Estimate
		mean, std := robust.MeanStdDev(null[i])

		p := 1.0
		if len(g.Observations) > 0 {
			p = EmpiricalPValue(observed, null[i])
		}
		pValues[i] = p

		z := 0.0
		if std >= negligibleStdDev {
			z = (observed - mean) / std
		}

		results[i] = ranking.SignificanceResult{
			CompoundID:       g.CompoundID,
			Observed:         observed,
			PValue:           p,
			EffectZ:          z,
			NormalPValue:     distuv.UnitNormal.CDF(z),
			NullMean:         mean,
			NullStdDev:       std,
			CILower:          intervals[i].Lower,
			CIUpper:          intervals[i].Upper,
			CIExcludesZero:   intervals[i].ExcludesZero(),
			ConfidenceLevel:  v.config.ConfidenceLevel,
			Permutations:     v.referee.NumShuffles(),
			BootstrapSamples: v.config.BootstrapSamples,
			FDRMethod:        MethodBH,
		}
	}

	for i, q := range BenjaminiHochberg(pValues) {
		results[i].QValue = q
	}

	v.logger.Debug("validated %d compounds with %d permutations", len(groups), v.referee.NumShuffles())
	return results, nil
}

func (v *Validator) intervals(ctx context.Context, groups []aggregate.Group) ([]Interval, error) {
	out := make([]Interval, len(groups))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(v.config.Workers)
	for i, g := range groups {
		eg.Go(func() error {
			rng, err := v.rngPort.Stream(egCtx, string(stage.StageBootstrap), string(g.CompoundID), v.config.Seed)
			if err != nil {
				return err
			}
			out[i] = BootstrapInterval(rng, g.Formula, g.Observations, v.config.BootstrapSamples, v.config.ConfidenceLevel)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Annotate is a convenience joining significance rows to compound rows by ID
func Annotate(compounds []ranking.CompoundAggregate, results []ranking.SignificanceResult) map[core.CompoundID]ranking.SignificanceResult {
	byID := make(map[core.CompoundID]ranking.SignificanceResult, len(results))
	for _, r := range results {
		byID[r.CompoundID] = r
	}
	for _, c := range compounds {
		if _, ok := byID[c.CompoundID]; !ok {
			byID[c.CompoundID] = ranking.SignificanceResult{CompoundID: c.CompoundID, PValue: 1, QValue: 1, EffectZ: 0}
		}
	}
	return byID
}
