package migration

import (
	"context"

	"github.com/jmoiron/sqlx"

	"gorevsig/internal/errors"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations. The DDL is limited
// to types both PostgreSQL and SQLite accept.
type MigrationRunner struct {
	version string
}

var _ Migrator = (*MigrationRunner)(nil)

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createRunsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create ranking_runs table")
	}

	if err := r.createCompoundAggregatesTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create compound_aggregates table")
	}

	if err := r.createCompoundSignificanceTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create compound_significance table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ranking_runs (
			run_id VARCHAR(64) PRIMARY KEY,
			config_hash VARCHAR(64) NOT NULL,
			input_hash VARCHAR(64) NOT NULL,
			seed BIGINT NOT NULL,
			code_version VARCHAR(32) NOT NULL,
			replay_fingerprint VARCHAR(64) NOT NULL,
			output_fingerprint VARCHAR(64) NOT NULL,
			compound_count INTEGER NOT NULL,
			signature_count INTEGER NOT NULL,
			created_at VARCHAR(40) NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createCompoundAggregatesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS compound_aggregates (
			run_id VARCHAR(64) NOT NULL REFERENCES ranking_runs(run_id) ON DELETE CASCADE,
			rank_position INTEGER NOT NULL,
			compound_id TEXT NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			median_score DOUBLE PRECISION NOT NULL,
			reverser_fraction DOUBLE PRECISION NOT NULL,
			total_signatures INTEGER NOT NULL,
			significant_signatures INTEGER NOT NULL,
			reverser_count INTEGER NOT NULL,
			context_count INTEGER NOT NULL,
			conflict BOOLEAN NOT NULL,
			central_tendency VARCHAR(32) NOT NULL,
			sample_size_factor DOUBLE PRECISION NOT NULL,
			diversity_bonus DOUBLE PRECISION NOT NULL,
			tier VARCHAR(16) NOT NULL,
			status VARCHAR(32) NOT NULL,
			PRIMARY KEY (run_id, rank_position)
		)
	`)
	return err
}

func (r *MigrationRunner) createCompoundSignificanceTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS compound_significance (
			run_id VARCHAR(64) NOT NULL REFERENCES ranking_runs(run_id) ON DELETE CASCADE,
			compound_id TEXT NOT NULL,
			observed DOUBLE PRECISION NOT NULL,
			p_value DOUBLE PRECISION NOT NULL,
			q_value DOUBLE PRECISION NOT NULL,
			effect_z DOUBLE PRECISION NOT NULL,
			normal_p_value DOUBLE PRECISION NOT NULL,
			null_mean DOUBLE PRECISION NOT NULL,
			null_std_dev DOUBLE PRECISION NOT NULL,
			ci_lower DOUBLE PRECISION NOT NULL,
			ci_upper DOUBLE PRECISION NOT NULL,
			ci_excludes_zero BOOLEAN NOT NULL,
			confidence_level DOUBLE PRECISION NOT NULL,
			permutations INTEGER NOT NULL,
			bootstrap_samples INTEGER NOT NULL,
			fdr_method VARCHAR(16) NOT NULL,
			PRIMARY KEY (run_id, compound_id)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_ranking_runs_created_at ON ranking_runs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_ranking_runs_replay ON ranking_runs(replay_fingerprint)`,
		`CREATE INDEX IF NOT EXISTS idx_compound_aggregates_compound ON compound_aggregates(compound_id)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
