package stages

import (
	"context"

	"gorevsig/domain/signature"
	"gorevsig/domain/stage"
)

// NormalizeStage divides positive scores by the mean positive score and
// negative scores by the mean absolute negative score of their population
type NormalizeStage struct {
	mode Normalization
}

// NewNormalizeStage creates a new normalize stage
func NewNormalizeStage(mode Normalization) *NormalizeStage {
	return &NormalizeStage{mode: mode}
}

func (s *NormalizeStage) Name() stage.StageName { return stage.StageNormalize }

// signedMeans holds the per-population divisors
type signedMeans struct {
	pos, neg   float64
	nPos, nNeg int
}

func (m *signedMeans) add(x float64) {
	switch {
	case x > 0:
		m.pos += x
		m.nPos++
	case x < 0:
		m.neg += -x
		m.nNeg++
	}
}

func (m signedMeans) normalize(x float64) float64 {
	switch {
	case x > 0 && m.nPos > 0 && m.pos > 0:
		return x / (m.pos / float64(m.nPos))
	case x < 0 && m.nNeg > 0 && m.neg > 0:
		return x / (m.neg / float64(m.nNeg))
	}
	return x
}

// Execute writes a new Ranked slice carrying the normalized score
func (s *NormalizeStage) Execute(ctx context.Context, st *State) (stage.StageResult, error) {
	result := stage.NewStageResult(s.Name(), 0)

	populations := make(map[string]*signedMeans)
	for _, sc := range st.Scored {
		if sc.Direction == signature.DirectionInvalid {
			continue
		}
		key := s.scope(sc)
		m, ok := populations[key]
		if !ok {
			m = &signedMeans{}
			populations[key] = m
		}
		m.add(sc.Score)
	}

	ranked := make([]signature.Ranked, len(st.Scored))
	for i, sc := range st.Scored {
		result.Metrics.ProcessedCount++
		ranked[i] = signature.Ranked{Scored: sc}
		if sc.Direction == signature.DirectionInvalid {
			result.Skip("invalid")
			continue
		}
		result.Metrics.SuccessCount++
		if s.mode == NormalizationNone {
			ranked[i].NormalizedScore = sc.Score
			continue
		}
		ranked[i].NormalizedScore = populations[s.scope(sc)].normalize(sc.Score)
	}

	result.Metrics.Custom = map[string]float64{"populations": float64(len(populations))}
	st.Ranked = ranked
	return result, nil
}

func (s *NormalizeStage) scope(sc signature.Scored) string {
	return scopeKey(s.mode, sc)
}

// scopeKey names the population a record is normalized and ranked within
func scopeKey(mode Normalization, sc signature.Scored) string {
	if mode == NormalizationPerContext {
		return "context:" + string(sc.Record.Context)
	}
	return "global"
}
