package signature

import (
	"encoding/json"
	"math"
	"strings"

	"gorevsig/domain/core"
)

// Direction is the discrete sign-pair category of one signature
type Direction string

const (
	DirectionReverser   Direction = "reverser"   // both directional values negative
	DirectionMimicker   Direction = "mimicker"   // both directional values positive
	DirectionPartial    Direction = "partial"    // opposite signs
	DirectionOrthogonal Direction = "orthogonal" // a zero without an opposite-sign partner
	DirectionInvalid    Direction = "invalid"    // non-finite input
)

// IsCoherent reports whether the direction carries an agreeing sign pair
func (d Direction) IsCoherent() bool {
	return d == DirectionReverser || d == DirectionMimicker
}

var directionAliases = map[string]Direction{
	"reverser":   DirectionReverser,
	"reverse":    DirectionReverser,
	"reversal":   DirectionReverser,
	"mimicker":   DirectionMimicker,
	"mimic":      DirectionMimicker,
	"mimicking":  DirectionMimicker,
	"partial":    DirectionPartial,
	"orthogonal": DirectionOrthogonal,
	"invalid":    DirectionInvalid,
}

// ParseDirection parses an externally reported direction label
func ParseDirection(label string) (Direction, bool) {
	d, ok := directionAliases[strings.ToLower(strings.TrimSpace(label))]
	return d, ok
}

// Record is one measured perturbation experiment. Records are never mutated
// after ingestion; every stage derives new values from them.
type Record struct {
	ID             core.SignatureID
	CompoundID     core.CompoundID
	ValueUp        float64
	ValueDown      float64
	FDRUp          *float64
	FDRDown        *float64
	Significance   *float64
	Context        core.ContextID
	Duration       string
	Dose           string
	DirectionLabel string
}

// HasFDR reports whether at least one finite directional FDR is present
func (r Record) HasFDR() bool {
	return finitePtr(r.FDRUp) || finitePtr(r.FDRDown)
}

// wireRecord is the JSON form of Record. Non-finite floats travel as null.
type wireRecord struct {
	ID             string   `json:"id"`
	CompoundID     string   `json:"compound_id"`
	ValueUp        *float64 `json:"value_up"`
	ValueDown      *float64 `json:"value_down"`
	FDRUp          *float64 `json:"fdr_up,omitempty"`
	FDRDown        *float64 `json:"fdr_down,omitempty"`
	Significance   *float64 `json:"significance,omitempty"`
	Context        string   `json:"context,omitempty"`
	Duration       string   `json:"duration,omitempty"`
	Dose           string   `json:"dose,omitempty"`
	DirectionLabel string   `json:"direction_label,omitempty"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireRecord{
		ID:             string(r.ID),
		CompoundID:     string(r.CompoundID),
		ValueUp:        finiteOrNil(r.ValueUp),
		ValueDown:      finiteOrNil(r.ValueDown),
		FDRUp:          finitePtrOrNil(r.FDRUp),
		FDRDown:        finitePtrOrNil(r.FDRDown),
		Significance:   finitePtrOrNil(r.Significance),
		Context:        string(r.Context),
		Duration:       r.Duration,
		Dose:           r.Dose,
		DirectionLabel: r.DirectionLabel,
	})
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = Record{
		ID:             core.SignatureID(w.ID),
		CompoundID:     core.CompoundID(strings.TrimSpace(w.CompoundID)),
		ValueUp:        valueOrNaN(w.ValueUp),
		ValueDown:      valueOrNaN(w.ValueDown),
		FDRUp:          w.FDRUp,
		FDRDown:        w.FDRDown,
		Significance:   w.Significance,
		Context:        core.ContextID(w.Context),
		Duration:       w.Duration,
		Dose:           w.Dose,
		DirectionLabel: w.DirectionLabel,
	}
	return nil
}

// Scored is a Record augmented with the scorer's outputs. Score < 0 means
// reversal, Score > 0 mimicry.
type Scored struct {
	Record           Record    `json:"record"`
	Score            float64   `json:"score"`
	Strength         float64   `json:"strength"`
	Direction        Direction `json:"direction"`
	SignificancePass bool      `json:"significance_pass"`
	ConfidenceWeight float64   `json:"confidence_weight"`
	LabelAgreement   *bool     `json:"label_agreement,omitempty"`
}

// Ranked is a Scored signature after normalization and percentile ranking
type Ranked struct {
	Scored
	NormalizedScore float64 `json:"normalized_score"`
	PercentileScore float64 `json:"percentile_score"`
}

// Float is a convenience for building optional fields
func Float(v float64) *float64 {
	return &v
}

func finitePtr(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func finitePtrOrNil(v *float64) *float64 {
	if !finitePtr(v) {
		return nil
	}
	return finiteOrNil(*v)
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
