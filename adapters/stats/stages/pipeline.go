package stages

import (
	"context"
	"time"

	"gorevsig/adapters/stats/scorer"
	"gorevsig/domain/ranking"
	"gorevsig/domain/signature"
	"gorevsig/domain/stage"
	"gorevsig/internal"
	"gorevsig/internal/errors"
	"gorevsig/ports"
)

// State is threaded through the stages. Each stage reads the previous
// stage's slice and writes its own; nothing is updated in place.
type State struct {
	Input    Input
	Schema   signature.Schema
	Records  []signature.Record
	Scored   []signature.Scored
	Ranked   []signature.Ranked
	Contexts []ranking.ContextSummary
}

// Stage is one step of the ranking pipeline
type Stage interface {
	Name() stage.StageName
	Execute(ctx context.Context, st *State) (stage.StageResult, error)
}

// Output is the product of a pipeline run
type Output struct {
	Schema   signature.Schema
	Records  []signature.Record
	Scored   []signature.Scored
	Ranked   []signature.Ranked
	Contexts []ranking.ContextSummary
	Stages   []stage.StageResult
}

// Pipeline runs extraction, weighted, normalize and percentile in order
type Pipeline struct {
	config Config
	stages []Stage
	logger *internal.Logger
}

// NewPipeline builds the four-stage pipeline
func NewPipeline(config Config, sc *scorer.Scorer, rng ports.RNGPort, logger *internal.Logger) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, errors.ConfigInvalid("pipeline requires a scorer")
	}
	if rng == nil {
		return nil, errors.ConfigInvalid("pipeline requires an rng port")
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	logger = logger.With("pipeline")

	return &Pipeline{
		config: config,
		logger: logger,
		stages: []Stage{
			NewExtractionStage(logger),
			NewWeightedStage(sc, logger),
			NewNormalizeStage(config.Normalization),
			NewPercentileStage(config, rng),
		},
	}, nil
}

// Config returns the pipeline configuration
func (p *Pipeline) Config() Config {
	return p.config
}

// Run executes every stage. Invalid rows never fail a run; only a missing
// required column or cancellation does.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Output, error) {
	st := &State{Input: in}
	results := make([]stage.StageResult, 0, len(p.stages))

	for _, s := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		started := time.Now()
		result, err := s.Execute(ctx, st)
		result.Finish(started, err)
		results = append(results, result)
		if err != nil {
			p.logger.Error("stage %s failed: %v", s.Name(), err)
			return nil, errors.Wrapf(err, "stage %s", s.Name())
		}
		p.logger.Debug("stage %s processed %d rows in %dms", s.Name(), result.Metrics.ProcessedCount, result.Metrics.DurationMs)
	}

	return &Output{
		Schema:   st.Schema,
		Records:  st.Records,
		Scored:   st.Scored,
		Ranked:   st.Ranked,
		Contexts: st.Contexts,
		Stages:   results,
	}, nil
}
