package aggregate

import (
	"gorevsig/domain/core"
	"gorevsig/internal/errors"
)

// SaturationMode selects the sample-size factor
type SaturationMode string

const (
	// SaturationSoftLog is min(1, log(1+n)/log(1+cap))
	SaturationSoftLog SaturationMode = "soft_log"
	// SaturationHardSqrt is min(1, sqrt(n/cap))
	SaturationHardSqrt SaturationMode = "hard_sqrt"
)

// ParseSaturationMode validates a saturation mode name
func ParseSaturationMode(s string) (SaturationMode, error) {
	switch SaturationMode(s) {
	case SaturationSoftLog, SaturationHardSqrt:
		return SaturationMode(s), nil
	}
	return "", core.NewUnknownModeError("saturation_mode", s)
}

// ScoreField selects which per-row score is aggregated
type ScoreField string

const (
	ScoreFieldWeighted   ScoreField = "weighted"
	ScoreFieldNormalized ScoreField = "normalized"
	ScoreFieldPercentile ScoreField = "percentile"
)

// ParseScoreField validates a score field name
func ParseScoreField(s string) (ScoreField, error) {
	switch ScoreField(s) {
	case ScoreFieldWeighted, ScoreFieldNormalized, ScoreFieldPercentile:
		return ScoreField(s), nil
	}
	return "", core.NewUnknownModeError("score_field", s)
}

// Config holds aggregation parameters
type Config struct {
	ScoreField         ScoreField
	FilterSignificance bool // drop signatures that fail the FDR gate
	MinSignatures      int
	MinReversers       int
	Saturation         SaturationMode
	SaturationCap      float64
	BonusRate          float64 // diversity bonus per additional context
	ContextWeights     *WeightTable
	DurationWeights    *WeightTable
}

// DefaultConfig returns the default aggregation configuration
func DefaultConfig() Config {
	return Config{
		ScoreField:         ScoreFieldWeighted,
		FilterSignificance: true,
		MinSignatures:      1,
		MinReversers:       1,
		Saturation:         SaturationSoftLog,
		SaturationCap:      8,
		BonusRate:          0.1,
	}
}

// Validate rejects unknown modes and non-positive limits
func (c Config) Validate() error {
	if _, err := ParseScoreField(string(c.ScoreField)); err != nil {
		return errors.ConfigInvalidf(err, "invalid aggregation configuration")
	}
	if _, err := ParseSaturationMode(string(c.Saturation)); err != nil {
		return errors.ConfigInvalidf(err, "invalid aggregation configuration")
	}
	if c.MinSignatures < 1 {
		return errors.ConfigInvalidf(core.ErrNonPositive, "min signatures must be at least 1, got %d", c.MinSignatures)
	}
	if c.MinReversers < 1 {
		return errors.ConfigInvalidf(core.ErrNonPositive, "min reversers must be at least 1, got %d", c.MinReversers)
	}
	if !(c.SaturationCap > 0) {
		return errors.ConfigInvalidf(core.ErrNonPositive, "saturation cap must be positive, got %v", c.SaturationCap)
	}
	if !(c.BonusRate >= 0) {
		return errors.ConfigInvalidf(core.ErrOutOfRange, "bonus rate must be non-negative, got %v", c.BonusRate)
	}
	if err := c.ContextWeights.Validate(); err != nil {
		return errors.ConfigInvalidf(err, "invalid context weights")
	}
	if err := c.DurationWeights.Validate(); err != nil {
		return errors.ConfigInvalidf(err, "invalid duration weights")
	}
	return nil
}

func (c Config) formula(contexts int, conflict bool) Formula {
	return Formula{
		ContextCount:  contexts,
		Conflict:      conflict,
		MinSignatures: c.MinSignatures,
		MinReversers:  c.MinReversers,
		Saturation:    c.Saturation,
		SaturationCap: c.SaturationCap,
		BonusRate:     c.BonusRate,
	}
}
