package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"gorevsig/domain/core"
	"gorevsig/domain/ranking"
	"gorevsig/domain/run"
	"gorevsig/internal/errors"
	"gorevsig/ports"
)

// RunRepository implements ports.RunRepository on sqlx. Queries use ?
// placeholders and go through Rebind, so the same code serves PostgreSQL
// and SQLite.
type RunRepository struct {
	db *sqlx.DB
}

var _ ports.RunRepository = (*RunRepository)(nil)

// NewRunRepository creates a new run repository
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

type runRow struct {
	RunID             string `db:"run_id"`
	ConfigHash        string `db:"config_hash"`
	InputHash         string `db:"input_hash"`
	Seed              int64  `db:"seed"`
	CodeVersion       string `db:"code_version"`
	ReplayFingerprint string `db:"replay_fingerprint"`
	OutputFingerprint string `db:"output_fingerprint"`
	CompoundCount     int    `db:"compound_count"`
	SignatureCount    int    `db:"signature_count"`
	CreatedAt         string `db:"created_at"`
}

type compoundRow struct {
	RunID                 string  `db:"run_id"`
	RankPosition          int     `db:"rank_position"`
	CompoundID            string  `db:"compound_id"`
	Score                 float64 `db:"score"`
	MedianScore           float64 `db:"median_score"`
	ReverserFraction      float64 `db:"reverser_fraction"`
	TotalSignatures       int     `db:"total_signatures"`
	SignificantSignatures int     `db:"significant_signatures"`
	ReverserCount         int     `db:"reverser_count"`
	ContextCount          int     `db:"context_count"`
	Conflict              bool    `db:"conflict"`
	CentralTendency       string  `db:"central_tendency"`
	SampleSizeFactor      float64 `db:"sample_size_factor"`
	DiversityBonus        float64 `db:"diversity_bonus"`
	Tier                  string  `db:"tier"`
	Status                string  `db:"status"`
}

type significanceRow struct {
	RunID            string  `db:"run_id"`
	CompoundID       string  `db:"compound_id"`
	Observed         float64 `db:"observed"`
	PValue           float64 `db:"p_value"`
	QValue           float64 `db:"q_value"`
	EffectZ          float64 `db:"effect_z"`
	NormalPValue     float64 `db:"normal_p_value"`
	NullMean         float64 `db:"null_mean"`
	NullStdDev       float64 `db:"null_std_dev"`
	CILower          float64 `db:"ci_lower"`
	CIUpper          float64 `db:"ci_upper"`
	CIExcludesZero   bool    `db:"ci_excludes_zero"`
	ConfidenceLevel  float64 `db:"confidence_level"`
	Permutations     int     `db:"permutations"`
	BootstrapSamples int     `db:"bootstrap_samples"`
	FDRMethod        string  `db:"fdr_method"`
}

const (
	insertRun = `
		INSERT INTO ranking_runs (run_id, config_hash, input_hash, seed, code_version, replay_fingerprint,
			output_fingerprint, compound_count, signature_count, created_at)
		VALUES (:run_id, :config_hash, :input_hash, :seed, :code_version, :replay_fingerprint,
			:output_fingerprint, :compound_count, :signature_count, :created_at)`

	insertCompound = `
		INSERT INTO compound_aggregates (run_id, rank_position, compound_id, score, median_score, reverser_fraction,
			total_signatures, significant_signatures, reverser_count, context_count, conflict, central_tendency,
			sample_size_factor, diversity_bonus, tier, status)
		VALUES (:run_id, :rank_position, :compound_id, :score, :median_score, :reverser_fraction,
			:total_signatures, :significant_signatures, :reverser_count, :context_count, :conflict, :central_tendency,
			:sample_size_factor, :diversity_bonus, :tier, :status)`

	insertSignificance = `
		INSERT INTO compound_significance (run_id, compound_id, observed, p_value, q_value, effect_z, normal_p_value,
			null_mean, null_std_dev, ci_lower, ci_upper, ci_excludes_zero, confidence_level, permutations,
			bootstrap_samples, fdr_method)
		VALUES (:run_id, :compound_id, :observed, :p_value, :q_value, :effect_z, :normal_p_value,
			:null_mean, :null_std_dev, :ci_lower, :ci_upper, :ci_excludes_zero, :confidence_level, :permutations,
			:bootstrap_samples, :fdr_method)`

	// fixed width, so created_at sorts lexically
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

	runColumns = `run_id, config_hash, input_hash, seed, code_version, replay_fingerprint,
		output_fingerprint, compound_count, signature_count, created_at`
)

// SaveRun writes the run row and both result tables in one transaction
func (r *RunRepository) SaveRun(ctx context.Context, rn *run.Run) error {
	if rn == nil {
		return errors.InvalidInput("run cannot be nil")
	}
	if err := rn.Manifest.Validate(); err != nil {
		return errors.WithCode(errors.CodeValidationError, err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	runID := string(rn.Manifest.RunID)
	if _, err := tx.NamedExecContext(ctx, insertRun, toRunRow(rn.Manifest)); err != nil {
		return errors.DatabaseError("failed to insert run", err)
	}
	for i, c := range rn.Compounds {
		if _, err := tx.NamedExecContext(ctx, insertCompound, toCompoundRow(runID, i, c)); err != nil {
			return errors.DatabaseError(fmt.Sprintf("failed to insert compound %s", c.CompoundID), err)
		}
	}
	for _, s := range rn.Significance {
		if _, err := tx.NamedExecContext(ctx, insertSignificance, toSignificanceRow(runID, s)); err != nil {
			return errors.DatabaseError(fmt.Sprintf("failed to insert significance for %s", s.CompoundID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("failed to commit run", err)
	}
	return nil
}

// GetRun loads a run with its compound table in rank order
func (r *RunRepository) GetRun(ctx context.Context, id core.RunID) (*run.Run, error) {
	var header runRow
	err := r.db.GetContext(ctx, &header, r.db.Rebind(`SELECT `+runColumns+` FROM ranking_runs WHERE run_id = ?`), string(id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to load run", err)
	}

	var compounds []compoundRow
	if err := r.db.SelectContext(ctx, &compounds, r.db.Rebind(`
		SELECT * FROM compound_aggregates WHERE run_id = ? ORDER BY rank_position
	`), string(id)); err != nil {
		return nil, errors.DatabaseError("failed to load compounds", err)
	}

	var significance []significanceRow
	if err := r.db.SelectContext(ctx, &significance, r.db.Rebind(`
		SELECT * FROM compound_significance WHERE run_id = ? ORDER BY compound_id
	`), string(id)); err != nil {
		return nil, errors.DatabaseError("failed to load significance", err)
	}

	manifest, err := header.manifest()
	if err != nil {
		return nil, err
	}
	out := &run.Run{
		Manifest:     manifest,
		Compounds:    make([]ranking.CompoundAggregate, len(compounds)),
		Significance: make([]ranking.SignificanceResult, len(significance)),
	}
	for i, c := range compounds {
		out.Compounds[i] = c.aggregate()
	}
	for i, s := range significance {
		out.Significance[i] = s.result()
	}
	return out, nil
}

// ListRuns returns manifests newest first
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]run.Manifest, error) {
	query := `SELECT ` + runColumns + ` FROM ranking_runs ORDER BY created_at DESC, run_id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, errors.DatabaseError("failed to list runs", err)
	}

	manifests := make([]run.Manifest, 0, len(rows))
	for _, row := range rows {
		m, err := row.manifest()
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}

func toRunRow(m run.Manifest) runRow {
	return runRow{
		RunID:             string(m.RunID),
		ConfigHash:        m.Replay.ConfigHash.String(),
		InputHash:         m.Replay.InputHash.String(),
		Seed:              m.Replay.Seed,
		CodeVersion:       m.Replay.CodeVersion,
		ReplayFingerprint: m.Replay.Fingerprint.String(),
		OutputFingerprint: m.OutputFingerprint.String(),
		CompoundCount:     m.CompoundCount,
		SignatureCount:    m.SignatureCount,
		CreatedAt:         m.CreatedAt.Time().UTC().Format(timeLayout),
	}
}

func (row runRow) manifest() (run.Manifest, error) {
	created, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return run.Manifest{}, errors.DatabaseError("invalid created_at", err)
	}
	return run.Manifest{
		RunID: core.RunID(row.RunID),
		Replay: run.RunFingerprint{
			ConfigHash:  core.ConfigHash(row.ConfigHash),
			InputHash:   core.TableHash(row.InputHash),
			Seed:        row.Seed,
			CodeVersion: row.CodeVersion,
			Fingerprint: core.Hash(row.ReplayFingerprint),
		},
		OutputFingerprint: core.Fingerprint(row.OutputFingerprint),
		CompoundCount:     row.CompoundCount,
		SignatureCount:    row.SignatureCount,
		CreatedAt:         core.NewTimestamp(created),
	}, nil
}

func toCompoundRow(runID string, position int, c ranking.CompoundAggregate) compoundRow {
	return compoundRow{
		RunID:                 runID,
		RankPosition:          position,
		CompoundID:            string(c.CompoundID),
		Score:                 c.Score,
		MedianScore:           c.MedianScore,
		ReverserFraction:      c.ReverserFraction,
		TotalSignatures:       c.TotalSignatures,
		SignificantSignatures: c.SignificantSignatures,
		ReverserCount:         c.ReverserCount,
		ContextCount:          c.ContextCount,
		Conflict:              c.Conflict,
		CentralTendency:       string(c.CentralTendency),
		SampleSizeFactor:      c.SampleSizeFactor,
		DiversityBonus:        c.DiversityBonus,
		Tier:                  string(c.Tier),
		Status:                string(c.Status),
	}
}

func (c compoundRow) aggregate() ranking.CompoundAggregate {
	return ranking.CompoundAggregate{
		CompoundID:            core.CompoundID(c.CompoundID),
		Score:                 c.Score,
		MedianScore:           c.MedianScore,
		ReverserFraction:      c.ReverserFraction,
		TotalSignatures:       c.TotalSignatures,
		SignificantSignatures: c.SignificantSignatures,
		ReverserCount:         c.ReverserCount,
		ContextCount:          c.ContextCount,
		Conflict:              c.Conflict,
		CentralTendency:       ranking.CentralTendency(c.CentralTendency),
		SampleSizeFactor:      c.SampleSizeFactor,
		DiversityBonus:        c.DiversityBonus,
		Tier:                  ranking.Tier(c.Tier),
		Status:                ranking.Status(c.Status),
	}
}

func toSignificanceRow(runID string, s ranking.SignificanceResult) significanceRow {
	return significanceRow{
		RunID:            runID,
		CompoundID:       string(s.CompoundID),
		Observed:         s.Observed,
		PValue:           s.PValue,
		QValue:           s.QValue,
		EffectZ:          s.EffectZ,
		NormalPValue:     s.NormalPValue,
		NullMean:         s.NullMean,
		NullStdDev:       s.NullStdDev,
		CILower:          s.CILower,
		CIUpper:          s.CIUpper,
		CIExcludesZero:   s.CIExcludesZero,
		ConfidenceLevel:  s.ConfidenceLevel,
		Permutations:     s.Permutations,
		BootstrapSamples: s.BootstrapSamples,
		FDRMethod:        s.FDRMethod,
	}
}

func (s significanceRow) result() ranking.SignificanceResult {
	return ranking.SignificanceResult{
		CompoundID:       core.CompoundID(s.CompoundID),
		Observed:         s.Observed,
		PValue:           s.PValue,
		QValue:           s.QValue,
		EffectZ:          s.EffectZ,
		NormalPValue:     s.NormalPValue,
		NullMean:         s.NullMean,
		NullStdDev:       s.NullStdDev,
		CILower:          s.CILower,
		CIUpper:          s.CIUpper,
		CIExcludesZero:   s.CIExcludesZero,
		ConfidenceLevel:  s.ConfidenceLevel,
		Permutations:     s.Permutations,
		BootstrapSamples: s.BootstrapSamples,
		FDRMethod:        s.FDRMethod,
	}
}
