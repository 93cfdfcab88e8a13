package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorevsig/adapters/battery"
	"gorevsig/adapters/stats/aggregate"
	"gorevsig/adapters/stats/scorer"
	"gorevsig/adapters/stats/stages"
	"gorevsig/domain/core"
	"gorevsig/domain/ranking"
	"gorevsig/domain/run"
	"gorevsig/domain/signature"
	"gorevsig/domain/stage"
	"gorevsig/internal"
	"gorevsig/internal/errors"
	"gorevsig/ports"
)

// RankingService runs the whole engine: pipeline, aggregation and
// validation, producing fingerprinted result tables
type RankingService struct {
	options    Options
	pipeline   *stages.Pipeline
	aggregator *aggregate.Aggregator
	validator  *battery.Validator
	store      ports.RunRepository
	logger     *internal.Logger
}

// RankingResult is the complete output of one run
type RankingResult struct {
	RunID        core.RunID                                     `json:"run_id"`
	Compounds    []ranking.CompoundAggregate                    `json:"compounds"`
	Significance map[core.CompoundID]ranking.SignificanceResult `json:"significance"`
	Signatures   []signature.Ranked                             `json:"signatures"`
	Contexts     []ranking.ContextSummary                       `json:"contexts"`
	Capabilities []string                                       `json:"capabilities"`
	Stages       []stage.StageResult                            `json:"stages"`
	Summary      stage.PipelineSummary                          `json:"summary"`
	Replay       run.RunFingerprint                             `json:"replay"`
	Fingerprint  core.Fingerprint                               `json:"fingerprint"`
}

// SignificanceRows returns the significance table in compound ID order
func (r *RankingResult) SignificanceRows() []ranking.SignificanceResult {
	rows := make([]ranking.SignificanceResult, 0, len(r.Significance))
	for _, s := range r.Significance {
		rows = append(rows, s)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CompoundID < rows[j].CompoundID })
	return rows
}

// NewRankingService wires the components. Every configuration error is
// reported here, before any data is touched.
func NewRankingService(opts Options, rngPort ports.RNGPort, logger *internal.Logger) (*RankingService, error) {
	if logger == nil {
		logger = internal.DefaultLogger
	}

	sc, err := scorer.New(opts.Scorer)
	if err != nil {
		return nil, err
	}
	pipeline, err := stages.NewPipeline(opts.Pipeline, sc, rngPort, logger)
	if err != nil {
		return nil, err
	}
	aggregator, err := aggregate.New(opts.Aggregate, logger)
	if err != nil {
		return nil, err
	}

	var validator *battery.Validator
	if opts.RunValidation {
		validator, err = battery.NewValidator(opts.Validation, rngPort, logger)
		if err != nil {
			return nil, err
		}
	}

	return &RankingService{
		options:    opts,
		pipeline:   pipeline,
		aggregator: aggregator,
		validator:  validator,
		logger:     logger.With("ranking"),
	}, nil
}

// WithStore persists every successful Rank through repo
func (s *RankingService) WithStore(repo ports.RunRepository) *RankingService {
	s.store = repo
	return s
}

// Options returns the service options
func (s *RankingService) Options() Options {
	return s.options
}

// Rank runs the engine once and, when a store is attached, saves the run
func (s *RankingService) Rank(ctx context.Context, in stages.Input) (*RankingResult, error) {
	result, err := s.rank(ctx, in)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		r := &run.Run{
			Manifest:     run.NewManifest(result.RunID, result.Replay, result.Fingerprint, len(result.Compounds), len(result.Signatures)),
			Compounds:    result.Compounds,
			Significance: result.SignificanceRows(),
		}
		if err := s.store.SaveRun(ctx, r); err != nil {
			return nil, errors.Wrap(err, "failed to persist run")
		}
		s.logger.Info("stored run %s", result.RunID)
	}
	return result, nil
}

// Verify runs the engine twice on the same input and fails with
// core.ErrNonDeterministic when the output fingerprints differ
func (s *RankingService) Verify(ctx context.Context, in stages.Input) (*RankingResult, error) {
	first, err := s.rank(ctx, in)
	if err != nil {
		return nil, err
	}
	second, err := s.rank(ctx, in)
	if err != nil {
		return nil, err
	}
	if !core.Hash(first.Fingerprint).Equals(core.Hash(second.Fingerprint)) {
		return first, fmt.Errorf("%w: %s != %s", core.ErrNonDeterministic, first.Fingerprint, second.Fingerprint)
	}
	return first, nil
}

func (s *RankingService) rank(ctx context.Context, in stages.Input) (*RankingResult, error) {
	started := time.Now()
	runID := core.NewRunID()

	out, err := s.pipeline.Run(ctx, in)
	if err != nil {
		return nil, err
	}

	aggStarted := time.Now()
	aggResult, err := s.aggregator.Aggregate(ctx, out.Ranked)
	if err != nil {
		return nil, errors.Wrap(err, "aggregation failed")
	}
	aggAudit := stage.NewStageResult(stage.StageAggregate, 0)
	aggAudit.Metrics.ProcessedCount = len(out.Ranked)
	aggAudit.Metrics.SuccessCount = len(aggResult.Compounds)
	aggAudit.Finish(aggStarted, nil)
	audits := append(out.Stages, aggAudit)

	significance := make(map[core.CompoundID]ranking.SignificanceResult)
	if s.validator != nil {
		valStarted := time.Now()
		rows, err := s.validator.Validate(ctx, aggResult.Groups)
		if err != nil {
			return nil, errors.Wrap(err, "validation failed")
		}
		valAudit := stage.NewStageResult(stage.StagePermutation, s.options.Validation.Seed)
		valAudit.Metrics.ProcessedCount = len(aggResult.Groups)
		valAudit.Metrics.SuccessCount = len(rows)
		valAudit.Finish(valStarted, nil)
		audits = append(audits, valAudit)
		significance = battery.Annotate(aggResult.Compounds, rows)
	}

	result := &RankingResult{
		RunID:        runID,
		Compounds:    aggResult.Compounds,
		Significance: significance,
		Signatures:   out.Ranked,
		Contexts:     out.Contexts,
		Capabilities: out.Schema.Capabilities(),
		Stages:       audits,
		Summary:      stage.Summarize(audits),
	}

	inputHash, err := core.HashJSON(out.Records)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash input")
	}
	result.Replay = run.NewRunFingerprint(s.options.Hash(), core.TableHash(inputHash), s.options.Pipeline.Seed, run.CodeVersion)

	fp, err := Fingerprint(result)
	if err != nil {
		return nil, err
	}
	result.Fingerprint = fp

	s.logger.Info("run %s ranked %d compounds from %d signatures in %dms (fingerprint %.12s)",
		runID, len(result.Compounds), len(result.Signatures), time.Since(started).Milliseconds(), fp)
	return result, nil
}

// Fingerprint hashes the JSON encoding of the result tables. Run IDs,
// timings and audits are excluded, so reruns with the same seed match.
func Fingerprint(result *RankingResult) (core.Fingerprint, error) {
	tables := []interface{}{
		result.Compounds,
		result.SignificanceRows(),
		result.Signatures,
		result.Contexts,
	}
	parts := make([]core.TableHash, len(tables))
	for i, t := range tables {
		h, err := core.HashJSON(t)
		if err != nil {
			return "", errors.Wrap(err, "failed to fingerprint result tables")
		}
		parts[i] = core.TableHash(h)
	}
	return core.CombineFingerprint(parts...), nil
}
