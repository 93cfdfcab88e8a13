package app

import (
	"fmt"

	"gorevsig/adapters/battery"
	"gorevsig/adapters/stats/aggregate"
	"gorevsig/adapters/stats/scorer"
	"gorevsig/adapters/stats/stages"
	"gorevsig/domain/core"
	"gorevsig/internal/config"
	"gorevsig/internal/errors"
)

// Options collects the per-component configurations of a ranking run
type Options struct {
	Scorer        scorer.Config
	Pipeline      stages.Config
	Aggregate     aggregate.Config
	Validation    battery.Config
	RunValidation bool
}

// DefaultOptions returns the defaults of every component
func DefaultOptions() Options {
	return Options{
		Scorer:        scorer.DefaultConfig(),
		Pipeline:      stages.DefaultConfig(),
		Aggregate:     aggregate.DefaultConfig(),
		Validation:    battery.DefaultConfig(),
		RunValidation: true,
	}
}

// OptionsFromConfig maps the flat environment configuration onto component
// configurations, rejecting unknown modes
func OptionsFromConfig(rc config.RankingConfig) (Options, error) {
	if err := rc.Validate(); err != nil {
		return Options{}, err
	}

	mode, err := scorer.ParseMode(rc.ScoringMode)
	if err != nil {
		return Options{}, errors.ConfigInvalidf(err, "scoring mode")
	}
	norm, err := stages.ParseNormalization(rc.Normalization)
	if err != nil {
		return Options{}, errors.ConfigInvalidf(err, "normalization")
	}
	ref, err := stages.ParseReferenceMode(rc.ReferenceMode)
	if err != nil {
		return Options{}, errors.ConfigInvalidf(err, "reference mode")
	}
	field, err := aggregate.ParseScoreField(rc.ScoreField)
	if err != nil {
		return Options{}, errors.ConfigInvalidf(err, "score field")
	}
	saturation, err := aggregate.ParseSaturationMode(rc.SaturationMode)
	if err != nil {
		return Options{}, errors.ConfigInvalidf(err, "saturation mode")
	}

	opts := Options{
		Scorer: scorer.Config{
			Mode:               mode,
			FDRThreshold:       rc.FDRThreshold,
			PartialAttenuation: rc.PartialAttenuation,
			MaxAbsValue:        rc.MaxAbsValue,
			SignificanceCap:    rc.SignificanceCap,
		},
		Pipeline: stages.Config{
			Normalization:     norm,
			Reference:         ref,
			ReferenceSize:     rc.ReferenceSize,
			ExternalReference: rc.ExternalReference,
			Seed:              rc.Seed,
		},
		Aggregate: aggregate.Config{
			ScoreField:         field,
			FilterSignificance: rc.FilterSignificance,
			MinSignatures:      rc.MinSignatures,
			MinReversers:       rc.MinReversers,
			Saturation:         saturation,
			SaturationCap:      rc.SaturationCap,
			BonusRate:          rc.BonusRate,
		},
		Validation: battery.Config{
			Permutations:     rc.Permutations,
			BootstrapSamples: rc.BootstrapSamples,
			ConfidenceLevel:  rc.ConfidenceLevel,
			Seed:             rc.Seed,
			Workers:          rc.Workers,
		},
		RunValidation: rc.RunValidation,
	}
	if len(rc.ContextWeights) > 0 {
		opts.Aggregate.ContextWeights = aggregate.NewWeightTable(rc.ContextWeights)
	}
	if len(rc.DurationWeights) > 0 {
		opts.Aggregate.DurationWeights = aggregate.NewWeightTable(rc.DurationWeights)
	}
	return opts, nil
}

// Hash fingerprints every parameter that can change a run's output
func (o Options) Hash() core.ConfigHash {
	params := map[string]interface{}{
		"scorer.mode":                  o.Scorer.Mode,
		"scorer.fdr_threshold":         o.Scorer.FDRThreshold,
		"scorer.partial_attenuation":   o.Scorer.PartialAttenuation,
		"scorer.max_abs_value":         o.Scorer.MaxAbsValue,
		"scorer.significance_cap":      o.Scorer.SignificanceCap,
		"pipeline.normalization":       o.Pipeline.Normalization,
		"pipeline.reference":           o.Pipeline.Reference,
		"pipeline.reference_size":      o.Pipeline.ReferenceSize,
		"pipeline.external_reference":  o.Pipeline.ExternalReference,
		"pipeline.seed":                o.Pipeline.Seed,
		"aggregate.score_field":        o.Aggregate.ScoreField,
		"aggregate.filter":             o.Aggregate.FilterSignificance,
		"aggregate.min_signatures":     o.Aggregate.MinSignatures,
		"aggregate.min_reversers":      o.Aggregate.MinReversers,
		"aggregate.saturation":         o.Aggregate.Saturation,
		"aggregate.saturation_cap":     o.Aggregate.SaturationCap,
		"aggregate.bonus_rate":         o.Aggregate.BonusRate,
		"aggregate.context_weights":    weightParams(o.Aggregate.ContextWeights),
		"aggregate.duration_weights":   weightParams(o.Aggregate.DurationWeights),
		"validation.enabled":           o.RunValidation,
		"validation.permutations":      o.Validation.Permutations,
		"validation.bootstrap_samples": o.Validation.BootstrapSamples,
		"validation.confidence_level":  o.Validation.ConfidenceLevel,
		"validation.seed":              o.Validation.Seed,
	}
	return core.ComputeConfigHash(params)
}

// weightParams renders a weight table deterministically (%v prints maps
// with sorted keys)
func weightParams(t *aggregate.WeightTable) string {
	if t == nil {
		return "none"
	}
	return fmt.Sprintf("%v default=%v", t.Values, t.Default)
}
