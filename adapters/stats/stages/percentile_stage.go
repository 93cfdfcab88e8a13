package stages

import (
	"context"
	"math"
	"sort"

	"gorevsig/adapters/stats/robust"
	"gorevsig/domain/core"
	"gorevsig/domain/ranking"
	"gorevsig/domain/signature"
	"gorevsig/domain/stage"
	"gorevsig/ports"
)

// PercentileStage ranks each normalized score against a reference
// distribution: sign(x) * 100 * |{r : |r| < |x|}| / |ref|
type PercentileStage struct {
	config Config
	rng    ports.RNGPort
}

// NewPercentileStage creates a new percentile stage
func NewPercentileStage(config Config, rng ports.RNGPort) *PercentileStage {
	return &PercentileStage{config: config, rng: rng}
}

func (s *PercentileStage) Name() stage.StageName { return stage.StagePercentile }

// reference answers percentile queries for one scope
type reference interface {
	percentile(compound core.CompoundID, x float64) float64
	size(compound core.CompoundID) int
}

// Execute writes a new Ranked slice carrying the percentile score and the
// per-context summaries
func (s *PercentileStage) Execute(ctx context.Context, st *State) (stage.StageResult, error) {
	result := stage.NewStageResult(s.Name(), s.config.Seed)

	refs, err := s.buildReferences(ctx, st.Ranked)
	if err != nil {
		return result, err
	}

	ranked := make([]signature.Ranked, len(st.Ranked))
	for i, r := range st.Ranked {
		result.Metrics.ProcessedCount++
		ranked[i] = r
		ranked[i].PercentileScore = 0
		if r.Direction == signature.DirectionInvalid {
			result.Skip("invalid")
			continue
		}
		ref := refs[scopeKey(s.config.Normalization, r.Scored)]
		if ref.size(r.Record.CompoundID) < 2 {
			result.Skip("degenerate_reference")
			continue
		}
		ranked[i].PercentileScore = ref.percentile(r.Record.CompoundID, r.NormalizedScore)
		result.Metrics.SuccessCount++
	}

	st.Ranked = ranked
	st.Contexts = s.summarize(ranked, refs)
	result.Metrics.Custom = map[string]float64{
		"references": float64(len(refs)),
		"contexts":   float64(len(st.Contexts)),
	}
	return result, nil
}

func (s *PercentileStage) buildReferences(ctx context.Context, rows []signature.Ranked) (map[string]reference, error) {
	populations := make(map[string][]signature.Ranked)
	for _, r := range rows {
		if r.Direction == signature.DirectionInvalid {
			continue
		}
		key := scopeKey(s.config.Normalization, r.Scored)
		populations[key] = append(populations[key], r)
	}

	refs := make(map[string]reference, len(populations))
	var external fixedReference
	if s.config.Reference == ReferenceExternal {
		external = newFixedReference(s.config.ExternalReference)
	}

	for key, pop := range populations {
		switch s.config.Reference {
		case ReferenceExternal:
			refs[key] = external
		case ReferenceLeaveOneOut:
			refs[key] = newLeaveOneOutReference(pop)
		default:
			ref, err := s.bootstrapReference(ctx, key, pop)
			if err != nil {
				return nil, err
			}
			refs[key] = ref
		}
	}
	return refs, nil
}

// bootstrapReference resamples, per compound, the scope population minus
// that compound's own records. Each compound draws from its own stream so
// references do not depend on iteration order.
func (s *PercentileStage) bootstrapReference(ctx context.Context, key string, pop []signature.Ranked) (compoundReference, error) {
	byCompound := make(map[core.CompoundID]int)
	for _, r := range pop {
		byCompound[r.Record.CompoundID]++
	}

	ref := make(compoundReference, len(byCompound))
	for id, own := range byCompound {
		others := make([]float64, 0, len(pop)-own)
		for _, r := range pop {
			if r.Record.CompoundID != id {
				others = append(others, r.NormalizedScore)
			}
		}
		if len(others) < 2 {
			ref[id] = fixedReference{}
			continue
		}
		stream, err := s.rng.Stream(ctx, string(stage.StagePercentile), key+"/"+string(id), s.config.Seed)
		if err != nil {
			return nil, err
		}
		draws := make([]float64, s.config.ReferenceSize)
		for i := range draws {
			draws[i] = others[stream.Intn(len(others))]
		}
		ref[id] = newFixedReference(draws)
	}
	return ref, nil
}

func (s *PercentileStage) summarize(rows []signature.Ranked, refs map[string]reference) []ranking.ContextSummary {
	type groupKey struct {
		compound core.CompoundID
		context  core.ContextID
	}
	groups := make(map[groupKey][]float64)
	scopes := make(map[groupKey]string)
	for _, r := range rows {
		if r.Direction == signature.DirectionInvalid {
			continue
		}
		k := groupKey{r.Record.CompoundID, r.Record.Context}
		groups[k] = append(groups[k], r.NormalizedScore)
		scopes[k] = scopeKey(s.config.Normalization, r.Scored)
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].compound != keys[j].compound {
			return keys[i].compound < keys[j].compound
		}
		return keys[i].context < keys[j].context
	})

	summaries := make([]ranking.ContextSummary, 0, len(keys))
	for _, k := range keys {
		rep := robust.QuantileExtremum(groups[k])
		ref := refs[scopes[k]]
		summary := ranking.ContextSummary{
			CompoundID:      k.compound,
			Context:         k.context,
			Records:         len(groups[k]),
			NormalizedScore: rep,
			ReferenceSize:   ref.size(k.compound),
		}
		if summary.ReferenceSize >= 2 {
			summary.PercentileScore = ref.percentile(k.compound, rep)
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// fixedReference is a sorted slice of absolute reference values
type fixedReference struct {
	abs []float64
}

func newFixedReference(values []float64) fixedReference {
	abs := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		abs = append(abs, math.Abs(v))
	}
	sort.Float64s(abs)
	return fixedReference{abs: abs}
}

func (f fixedReference) percentile(_ core.CompoundID, x float64) float64 {
	return tau(x, sort.SearchFloat64s(f.abs, math.Abs(x)), len(f.abs))
}

func (f fixedReference) size(core.CompoundID) int { return len(f.abs) }

// compoundReference holds one resampled reference per compound
type compoundReference map[core.CompoundID]fixedReference

func (c compoundReference) percentile(compound core.CompoundID, x float64) float64 {
	return c[compound].percentile(compound, x)
}

func (c compoundReference) size(compound core.CompoundID) int { return c[compound].size(compound) }

// leaveOneOutReference excludes the queried compound's own records
type leaveOneOutReference struct {
	all fixedReference
	own map[core.CompoundID]fixedReference
}

func newLeaveOneOutReference(pop []signature.Ranked) leaveOneOutReference {
	all := make([]float64, len(pop))
	byCompound := make(map[core.CompoundID][]float64)
	for i, r := range pop {
		all[i] = r.NormalizedScore
		byCompound[r.Record.CompoundID] = append(byCompound[r.Record.CompoundID], r.NormalizedScore)
	}
	own := make(map[core.CompoundID]fixedReference, len(byCompound))
	for id, values := range byCompound {
		own[id] = newFixedReference(values)
	}
	return leaveOneOutReference{all: newFixedReference(all), own: own}
}

func (l leaveOneOutReference) percentile(compound core.CompoundID, x float64) float64 {
	own := l.own[compound]
	ax := math.Abs(x)
	below := sort.SearchFloat64s(l.all.abs, ax) - sort.SearchFloat64s(own.abs, ax)
	return tau(x, below, l.size(compound))
}

func (l leaveOneOutReference) size(compound core.CompoundID) int {
	return len(l.all.abs) - len(l.own[compound].abs)
}

func tau(x float64, below, n int) float64 {
	if n < 2 || x == 0 {
		return 0
	}
	pct := 100 * float64(below) / float64(n)
	if x < 0 && pct != 0 {
		return -pct
	}
	return pct
}
