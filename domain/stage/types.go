package stage

import (
	"time"

	"gorevsig/domain/core"
)

// StageName represents a named stage in the ranking pipeline
type StageName string

// StageKind categorizes stages by function
type StageKind string

const (
	StageKindRanking    StageKind = "ranking"    // per-signature computation
	StageKindAggregate  StageKind = "aggregate"  // per-compound reduction
	StageKindValidation StageKind = "validation" // permutation and bootstrap
)

// Predefined stage names
const (
	// Ranking stages
	StageExtraction StageName = "extraction"
	StageWeighted   StageName = "weighted"
	StageNormalize  StageName = "normalize"
	StagePercentile StageName = "percentile"

	// Reduction and validation
	StageAggregate   StageName = "aggregate"
	StagePermutation StageName = "permutation"
	StageBootstrap   StageName = "bootstrap"
	StageFDR         StageName = "fdr"
)

// Kind returns the kind a predefined stage belongs to
func (n StageName) Kind() StageKind {
	switch n {
	case StageAggregate:
		return StageKindAggregate
	case StagePermutation, StageBootstrap, StageFDR:
		return StageKindValidation
	default:
		return StageKindRanking
	}
}

// StageResult records what one stage did
type StageResult struct {
	StageName StageName    `json:"stage_name"`
	Kind      StageKind    `json:"kind"`
	Success   bool         `json:"success"`
	Metrics   StageMetrics `json:"metrics"`
	Audit     StageAudit   `json:"audit"`
	Error     string       `json:"error,omitempty"`
}

// StageAudit captures the execution context of a stage
type StageAudit struct {
	Seed          int64          `json:"seed"`
	SkipsByReason map[string]int `json:"skips_by_reason,omitempty"` // e.g., {"invalid": 3}
	Warnings      []string       `json:"warnings,omitempty"`
	ExecutedAt    core.Timestamp `json:"executed_at"`
}

// StageMetrics contains canonical metrics for stage results. DurationMs is
// excluded from JSON so audits of identical runs compare equal.
type StageMetrics struct {
	ProcessedCount int   `json:"processed_count"`
	SuccessCount   int   `json:"success_count"`
	SkippedCount   int   `json:"skipped_count"`
	DurationMs     int64 `json:"-"`

	// Custom metrics (stage-specific)
	Custom map[string]float64 `json:"custom,omitempty"`
}

// NewStageResult starts a result for the named stage
func NewStageResult(name StageName, seed int64) StageResult {
	return StageResult{
		StageName: name,
		Kind:      name.Kind(),
		Success:   true,
		Audit: StageAudit{
			Seed:          seed,
			SkipsByReason: make(map[string]int),
			ExecutedAt:    core.Now(),
		},
	}
}

// Skip counts one skipped item under a reason
func (r *StageResult) Skip(reason string) {
	r.Audit.SkipsByReason[reason]++
	r.Metrics.SkippedCount++
}

// Warn appends an audit warning
func (r *StageResult) Warn(msg string) {
	r.Audit.Warnings = append(r.Audit.Warnings, msg)
}

// Finish stamps timing and marks failure when err is non-nil
func (r *StageResult) Finish(started time.Time, err error) {
	r.Metrics.DurationMs = time.Since(started).Milliseconds()
	if err != nil {
		r.Success = false
		r.Error = err.Error()
	}
}

// PipelineSummary provides high-level pipeline statistics
type PipelineSummary struct {
	TotalStages int `json:"total_stages"`
	Successful  int `json:"successful"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`
}

// Summarize folds stage results into a summary
func Summarize(results []StageResult) PipelineSummary {
	var s PipelineSummary
	for _, r := range results {
		s.TotalStages++
		if r.Success {
			s.Successful++
		} else {
			s.Failed++
		}
		s.Skipped += r.Metrics.SkippedCount
	}
	return s
}
