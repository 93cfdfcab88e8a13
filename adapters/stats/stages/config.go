package stages

import (
	"math"

	"gorevsig/domain/core"
	"gorevsig/internal/errors"
)

// Normalization selects the population a score is normalized against
type Normalization string

const (
	NormalizationNone       Normalization = "none"
	NormalizationGlobal     Normalization = "global"
	NormalizationPerContext Normalization = "per_context"
)

// ParseNormalization validates a normalization name
func ParseNormalization(s string) (Normalization, error) {
	switch Normalization(s) {
	case NormalizationNone, NormalizationGlobal, NormalizationPerContext:
		return Normalization(s), nil
	}
	return "", core.NewUnknownModeError("normalization", s)
}

// ReferenceMode selects how the percentile reference distribution is built
type ReferenceMode string

const (
	ReferenceBootstrap   ReferenceMode = "bootstrap"
	ReferenceLeaveOneOut ReferenceMode = "leave_one_out"
	ReferenceExternal    ReferenceMode = "external"
)

// ParseReferenceMode validates a reference mode name
func ParseReferenceMode(s string) (ReferenceMode, error) {
	switch ReferenceMode(s) {
	case ReferenceBootstrap, ReferenceLeaveOneOut, ReferenceExternal:
		return ReferenceMode(s), nil
	}
	return "", core.NewUnknownModeError("reference_mode", s)
}

// Config holds pipeline parameters that are not scorer parameters
type Config struct {
	Normalization     Normalization
	Reference         ReferenceMode
	ReferenceSize     int       // draws per bootstrap reference
	ExternalReference []float64 // used when Reference is external
	Seed              int64
}

// DefaultConfig returns the default pipeline configuration
func DefaultConfig() Config {
	return Config{
		Normalization: NormalizationGlobal,
		Reference:     ReferenceBootstrap,
		ReferenceSize: 1000,
		Seed:          42,
	}
}

// Validate rejects unknown modes and unusable references
func (c Config) Validate() error {
	if _, err := ParseNormalization(string(c.Normalization)); err != nil {
		return errors.ConfigInvalidf(err, "invalid pipeline configuration")
	}
	if _, err := ParseReferenceMode(string(c.Reference)); err != nil {
		return errors.ConfigInvalidf(err, "invalid pipeline configuration")
	}
	if c.Reference == ReferenceBootstrap && c.ReferenceSize <= 0 {
		return errors.ConfigInvalidf(core.ErrNonPositive, "reference size must be positive, got %d", c.ReferenceSize)
	}
	if c.Reference == ReferenceExternal {
		finite := 0
		for _, v := range c.ExternalReference {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				finite++
			}
		}
		if finite == 0 {
			return errors.ConfigInvalidf(core.ErrEmptyReference, "external reference mode needs at least one finite value")
		}
	}
	return nil
}
