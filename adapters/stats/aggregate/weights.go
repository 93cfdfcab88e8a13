package aggregate

import (
	"fmt"
	"math"
	"strings"

	"gorevsig/domain/core"
)

// DefaultUnknownWeight is applied to categories missing from a configured table
const DefaultUnknownWeight = 0.5

// WeightTable maps a categorical value (context, duration) to a relevance
// weight. A nil table weighs everything 1.
type WeightTable struct {
	Values  map[string]float64
	Default float64
}

// NewWeightTable creates a table whose unknown keys weigh DefaultUnknownWeight.
// Keys are matched case-insensitively.
func NewWeightTable(values map[string]float64) *WeightTable {
	normalized := make(map[string]float64, len(values))
	for k, v := range values {
		normalized[normalizeKey(k)] = v
	}
	return &WeightTable{Values: normalized, Default: DefaultUnknownWeight}
}

// Weight returns the weight of key
func (t *WeightTable) Weight(key string) float64 {
	if t == nil {
		return 1
	}
	if v, ok := t.Values[normalizeKey(key)]; ok {
		return v
	}
	return t.Default
}

// Validate rejects negative or non-finite weights
func (t *WeightTable) Validate() error {
	if t == nil {
		return nil
	}
	if !validWeight(t.Default) {
		return fmt.Errorf("%w: default weight %v", core.ErrOutOfRange, t.Default)
	}
	for k, v := range t.Values {
		if !validWeight(v) {
			return fmt.Errorf("%w: weight %v for %q", core.ErrOutOfRange, v, k)
		}
	}
	return nil
}

func validWeight(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}
