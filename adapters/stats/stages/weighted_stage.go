package stages

import (
	"context"

	"gorevsig/adapters/stats/scorer"
	"gorevsig/domain/signature"
	"gorevsig/domain/stage"
	"gorevsig/internal"
)

// WeightedStage scores every record with the signature scorer
type WeightedStage struct {
	scorer *scorer.Scorer
	logger *internal.Logger
}

// NewWeightedStage creates a new weighted stage
func NewWeightedStage(sc *scorer.Scorer, logger *internal.Logger) *WeightedStage {
	return &WeightedStage{scorer: sc, logger: logger}
}

func (s *WeightedStage) Name() stage.StageName { return stage.StageWeighted }

// Execute scores records. Invalid records are kept with score 0 and logged.
func (s *WeightedStage) Execute(ctx context.Context, st *State) (stage.StageResult, error) {
	result := stage.NewStageResult(s.Name(), 0)

	scored := make([]signature.Scored, len(st.Records))
	passing := 0
	for i, rec := range st.Records {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return result, err
			}
		}
		result.Metrics.ProcessedCount++
		scored[i] = s.scorer.Score(rec)

		if scored[i].Direction == signature.DirectionInvalid {
			s.logger.Warn("signature %s of %s has non-finite values (up=%v down=%v), scored as invalid",
				rec.ID, rec.CompoundID, rec.ValueUp, rec.ValueDown)
			result.Skip("invalid")
			continue
		}
		result.Metrics.SuccessCount++
		if scored[i].SignificancePass {
			passing++
		}
	}

	result.Metrics.Custom = map[string]float64{"significance_pass": float64(passing)}
	st.Scored = scored
	return result, nil
}
