package aggregate

import (
	"context"
	"sort"

	"gorevsig/domain/core"
	"gorevsig/domain/ranking"
	"gorevsig/domain/signature"
	"gorevsig/internal"
)

// Tier thresholds
const (
	HighMinSignatures   = 5
	HighMinContexts     = 2
	HighMinReverserFrac = 0.6

	MediumMinSignatures   = 3
	MediumMinReverserFrac = 0.5

	LowMinSignatures = 2
)

// Group is one compound's frozen formula together with the observations it
// was evaluated on, in input order
type Group struct {
	CompoundID   core.CompoundID
	Formula      Formula
	Observations []Observation
}

// Result holds the compound table and the groups validation consumes
type Result struct {
	// Compounds is sorted ascending by score, ties by compound ID
	Compounds []ranking.CompoundAggregate
	// Groups is sorted by compound ID
	Groups []Group
}

// Aggregator reduces per-signature scores to one score per compound
type Aggregator struct {
	config Config
	logger *internal.Logger
}

// New creates an aggregator after validating its configuration
func New(config Config, logger *internal.Logger) (*Aggregator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Aggregator{config: config, logger: logger.With("aggregate")}, nil
}

// Config returns the aggregator configuration
func (a *Aggregator) Config() Config {
	return a.config
}

// Aggregate returns one row per compound present in rows, including
// compounds whose every signature is invalid or filtered out
func (a *Aggregator) Aggregate(ctx context.Context, rows []signature.Ranked) (*Result, error) {
	byCompound := make(map[core.CompoundID][]signature.Ranked)
	for _, r := range rows {
		byCompound[r.Record.CompoundID] = append(byCompound[r.Record.CompoundID], r)
	}

	ids := make([]core.CompoundID, 0, len(byCompound))
	for id := range byCompound {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := &Result{
		Compounds: make([]ranking.CompoundAggregate, 0, len(ids)),
		Groups:    make([]Group, 0, len(ids)),
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		agg, group := a.aggregateCompound(id, byCompound[id])
		result.Compounds = append(result.Compounds, agg)
		result.Groups = append(result.Groups, group)
	}

	SortCompounds(result.Compounds)
	a.logger.Debug("aggregated %d signatures into %d compounds", len(rows), len(ids))
	return result, nil
}

func (a *Aggregator) aggregateCompound(id core.CompoundID, rows []signature.Ranked) (ranking.CompoundAggregate, Group) {
	agg := ranking.CompoundAggregate{CompoundID: id, TotalSignatures: len(rows)}

	filtered := make([]signature.Ranked, 0, len(rows))
	significant := make([]signature.Ranked, 0, len(rows))
	for _, r := range rows {
		if r.Direction == signature.DirectionInvalid {
			continue
		}
		if r.SignificancePass {
			agg.SignificantSignatures++
			significant = append(significant, r)
		}
		if a.config.FilterSignificance && !r.SignificancePass {
			continue
		}
		filtered = append(filtered, r)
	}

	// only significant signatures vote on conflict
	contexts, _ := ContextConflict(filtered)
	_, conflict := ContextConflict(significant)
	formula := a.config.formula(contexts, conflict)
	obs := a.observations(filtered)
	ev := formula.Evaluate(obs)

	agg.Score = ev.Score
	agg.MedianScore = ev.Median
	agg.ReverserFraction = ev.ReverserFraction
	agg.ReverserCount = ev.Reversers
	agg.ContextCount = contexts
	agg.Conflict = conflict
	agg.CentralTendency = ev.Central
	agg.SampleSizeFactor = ev.SampleSizeFactor
	agg.DiversityBonus = ev.DiversityBonus
	agg.Status = ev.Status
	agg.Tier = TierFor(len(obs), contexts, ev)

	if ev.Status != ranking.StatusOK {
		a.logger.Debug("compound %s: %s (%d of %d signatures usable)", id, ev.Status, len(obs), len(rows))
	}
	return agg, Group{CompoundID: id, Formula: formula, Observations: obs}
}

func (a *Aggregator) observations(rows []signature.Ranked) []Observation {
	obs := make([]Observation, len(rows))
	for i, r := range rows {
		weight := r.ConfidenceWeight *
			a.config.ContextWeights.Weight(string(r.Record.Context)) *
			a.config.DurationWeights.Weight(r.Record.Duration)
		obs[i] = Observation{
			Score:    a.fieldValue(r),
			Reverser: r.Direction == signature.DirectionReverser,
			Weight:   weight,
		}
	}
	return obs
}

func (a *Aggregator) fieldValue(r signature.Ranked) float64 {
	switch a.config.ScoreField {
	case ScoreFieldNormalized:
		return r.NormalizedScore
	case ScoreFieldPercentile:
		return r.PercentileScore
	default:
		return r.Score
	}
}

// ContextConflict counts distinct contexts and reports whether at least two
// contexts have a reverser/mimicker majority and those majorities disagree.
// Partial and orthogonal signatures do not vote.
func ContextConflict(rows []signature.Ranked) (contexts int, conflict bool) {
	type tally struct{ reversers, mimickers int }
	votes := make(map[core.ContextID]*tally)
	for _, r := range rows {
		t, ok := votes[r.Record.Context]
		if !ok {
			t = &tally{}
			votes[r.Record.Context] = t
		}
		switch r.Direction {
		case signature.DirectionReverser:
			t.reversers++
		case signature.DirectionMimicker:
			t.mimickers++
		}
	}

	majorities, reverserMajority, mimickerMajority := 0, false, false
	for _, t := range votes {
		switch {
		case t.reversers > t.mimickers:
			majorities++
			reverserMajority = true
		case t.mimickers > t.reversers:
			majorities++
			mimickerMajority = true
		}
	}
	return len(votes), majorities >= 2 && reverserMajority && mimickerMajority
}

// TierFor buckets evidence. Only scored compounds can rise above exploratory.
func TierFor(n, contexts int, ev Evaluation) ranking.Tier {
	if ev.Status != ranking.StatusOK {
		return ranking.TierExploratory
	}
	switch {
	case n >= HighMinSignatures && contexts >= HighMinContexts && ev.ReverserFraction >= HighMinReverserFrac:
		return ranking.TierHigh
	case n >= MediumMinSignatures && ev.ReverserFraction >= MediumMinReverserFrac:
		return ranking.TierMedium
	case n >= LowMinSignatures && ev.Reversers > 0:
		return ranking.TierLow
	}
	return ranking.TierExploratory
}

// SortCompounds orders ascending by score, ties by compound ID
func SortCompounds(rows []ranking.CompoundAggregate) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score < rows[j].Score
		}
		return rows[i].CompoundID < rows[j].CompoundID
	})
}
