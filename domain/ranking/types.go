package ranking

import (
	"gorevsig/domain/core"
)

// Status explains whether a compound aggregate carries a real score
type Status string

const (
	StatusOK                Status = "ok"
	StatusTooFewSignatures  Status = "too_few_signatures"
	StatusNoReverserContext Status = "no_reverser_context"
)

// Tier buckets evidence quantity and consistency for one compound
type Tier string

const (
	TierHigh        Tier = "high"
	TierMedium      Tier = "medium"
	TierLow         Tier = "low"
	TierExploratory Tier = "exploratory"
)

// CentralTendency names the estimator used for a compound's central score
type CentralTendency string

const (
	CentralWeightedMedian   CentralTendency = "weighted_median"
	CentralQuantileExtremum CentralTendency = "quantile_extremum"
	CentralNone             CentralTendency = "none"
)

// CompoundAggregate is one row of the compound ranking table
type CompoundAggregate struct {
	CompoundID            core.CompoundID `json:"compound_id"`
	Score                 float64         `json:"score"`
	MedianScore           float64         `json:"median_score"`
	ReverserFraction      float64         `json:"reverser_fraction"`
	TotalSignatures       int             `json:"total_signatures"`
	SignificantSignatures int             `json:"significant_signatures"`
	ReverserCount         int             `json:"reverser_count"`
	ContextCount          int             `json:"context_count"`
	Conflict              bool            `json:"conflict"`
	CentralTendency       CentralTendency `json:"central_tendency"`
	SampleSizeFactor      float64         `json:"sample_size_factor"`
	DiversityBonus        float64         `json:"diversity_bonus"`
	Tier                  Tier            `json:"tier"`
	Status                Status          `json:"status"`
}

// SignificanceResult is one row of the significance table, joined to the
// compound table by CompoundID
type SignificanceResult struct {
	CompoundID       core.CompoundID `json:"compound_id"`
	Observed         float64         `json:"observed"`
	PValue           float64         `json:"p_value"`
	QValue           float64         `json:"q_value"`
	EffectZ          float64         `json:"effect_z"`
	NormalPValue     float64         `json:"normal_p_value"`
	NullMean         float64         `json:"null_mean"`
	NullStdDev       float64         `json:"null_std_dev"`
	CILower          float64         `json:"ci_lower"`
	CIUpper          float64         `json:"ci_upper"`
	CIExcludesZero   bool            `json:"ci_excludes_zero"`
	ConfidenceLevel  float64         `json:"confidence_level"`
	Permutations     int             `json:"permutations"`
	BootstrapSamples int             `json:"bootstrap_samples"`
	FDRMethod        string          `json:"fdr_method"`
}

// ContextSummary is the quantile-extremum representative of one compound's
// records within one context
type ContextSummary struct {
	CompoundID      core.CompoundID `json:"compound_id"`
	Context         core.ContextID  `json:"context"`
	Records         int             `json:"records"`
	NormalizedScore float64         `json:"normalized_score"`
	PercentileScore float64         `json:"percentile_score"`
	ReferenceSize   int             `json:"reference_size"`
}

// Significant reports whether the compound passes alpha after correction and
// its interval excludes zero
func (s SignificanceResult) Significant(alpha float64) bool {
	return s.QValue < alpha && s.CIExcludesZero
}
