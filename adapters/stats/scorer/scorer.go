package scorer

import (
	"math"

	"gorevsig/domain/core"
	"gorevsig/domain/signature"
	"gorevsig/internal/errors"
)

// Mode selects how a directional enrichment pair becomes a score
type Mode string

const (
	// ModeCoherence averages same-sign pairs and attenuates incoherent ones
	ModeCoherence Mode = "coherence"
	// ModeContinuous sums both values with no sign gate
	ModeContinuous Mode = "continuous"
	// ModeLegacy is the strict binary classifier kept for regression comparison
	ModeLegacy Mode = "legacy"
)

// ParseMode validates a scoring mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCoherence, ModeContinuous, ModeLegacy:
		return Mode(s), nil
	}
	return "", core.NewUnknownModeError("scoring_mode", s)
}

// Config holds scorer parameters
type Config struct {
	Mode               Mode
	FDRThreshold       float64 // a directional FDR below this passes significance
	PartialAttenuation float64 // multiplier applied to incoherent pairs in coherence mode
	MaxAbsValue        float64 // finite inputs are clamped to [-MaxAbsValue, MaxAbsValue]
	SignificanceCap    float64 // combined significance beyond this has diminishing returns
}

// DefaultConfig returns the default scorer configuration
func DefaultConfig() Config {
	return Config{
		Mode:               ModeCoherence,
		FDRThreshold:       0.05,
		PartialAttenuation: 0.1,
		MaxAbsValue:        1e6,
		SignificanceCap:    3.0,
	}
}

// Validate rejects unknown modes and out-of-range parameters
func (c Config) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return errors.ConfigInvalidf(err, "invalid scorer configuration")
	}
	if !(c.FDRThreshold > 0 && c.FDRThreshold <= 1) {
		return errors.ConfigInvalidf(core.ErrOutOfRange, "fdr threshold must be in (0, 1], got %v", c.FDRThreshold)
	}
	if !(c.PartialAttenuation >= 0 && c.PartialAttenuation <= 1) {
		return errors.ConfigInvalidf(core.ErrOutOfRange, "partial attenuation must be in [0, 1], got %v", c.PartialAttenuation)
	}
	if !(c.MaxAbsValue > 0) {
		return errors.ConfigInvalidf(core.ErrNonPositive, "max abs value must be positive, got %v", c.MaxAbsValue)
	}
	if !(c.SignificanceCap > 0) {
		return errors.ConfigInvalidf(core.ErrNonPositive, "significance cap must be positive, got %v", c.SignificanceCap)
	}
	return nil
}

// Scorer turns one signature's directional enrichment pair into a score
type Scorer struct {
	config Config
}

// New creates a scorer, failing on invalid configuration
func New(config Config) (*Scorer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{config: config}, nil
}

// Config returns the scorer configuration
func (s *Scorer) Config() Config {
	return s.config
}

// Score scores one record. It never fails: non-finite values yield an
// invalid result with zero score and zero confidence.
func (s *Scorer) Score(rec signature.Record) signature.Scored {
	out := signature.Scored{Record: rec}

	up, down := rec.ValueUp, rec.ValueDown
	if !isFinite(up) || !isFinite(down) {
		out.Direction = signature.DirectionInvalid
		out.LabelAgreement = s.agreement(rec.DirectionLabel, out.Direction)
		return out
	}

	up = clamp(up, s.config.MaxAbsValue)
	down = clamp(down, s.config.MaxAbsValue)

	out.Direction = Classify(up, down)
	out.Score, out.Strength = s.directional(up, down, out.Direction)
	out.SignificancePass = s.significancePass(rec)
	out.ConfidenceWeight = s.confidenceWeight(rec.Significance)
	out.LabelAgreement = s.agreement(rec.DirectionLabel, out.Direction)
	return out
}

// Classify assigns the sign-pair category of a finite pair
func Classify(up, down float64) signature.Direction {
	switch {
	case up < 0 && down < 0:
		return signature.DirectionReverser
	case up > 0 && down > 0:
		return signature.DirectionMimicker
	case (up < 0 && down > 0) || (up > 0 && down < 0):
		return signature.DirectionPartial
	default:
		return signature.DirectionOrthogonal
	}
}

func (s *Scorer) directional(up, down float64, dir signature.Direction) (score, strength float64) {
	mean := (up + down) / 2

	switch s.config.Mode {
	case ModeContinuous:
		score = up + down
		return score, math.Abs(score)
	case ModeLegacy:
		if dir.IsCoherent() {
			return mean, math.Abs(mean)
		}
		return 0, 0
	default:
		// strength keeps the unattenuated magnitude so incoherent pairs
		// still rank by how far they moved
		if dir.IsCoherent() {
			return mean, math.Abs(mean)
		}
		return mean * s.config.PartialAttenuation, math.Abs(mean)
	}
}

func (s *Scorer) significancePass(rec signature.Record) bool {
	if !rec.HasFDR() {
		return true
	}
	for _, fdr := range []*float64{rec.FDRUp, rec.FDRDown} {
		if fdr != nil && isFinite(*fdr) && *fdr < s.config.FDRThreshold {
			return true
		}
	}
	return false
}

// confidenceWeight is linear up to the cap (reaching 1.0) and logarithmic
// beyond it
func (s *Scorer) confidenceWeight(sig *float64) float64 {
	if sig == nil || !isFinite(*sig) {
		return 1.0
	}
	v := math.Max(0, *sig)
	limit := s.config.SignificanceCap
	base := math.Min(v, limit)
	excess := math.Max(0, v-limit)
	return (base + math.Log1p(excess)) / limit
}

func (s *Scorer) agreement(label string, dir signature.Direction) *bool {
	if label == "" {
		return nil
	}
	external, ok := signature.ParseDirection(label)
	if !ok {
		return nil
	}
	agree := external == dir
	return &agree
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}
