package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorevsig/domain/core"
	"gorevsig/domain/ranking"
	"gorevsig/domain/run"
	"gorevsig/internal/errors"
	"gorevsig/internal/migration"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migration.NewRunner().Run(context.Background(), db))
	return db
}

func sampleRun(id string, created time.Time) *run.Run {
	replay := run.NewRunFingerprint("cfg-hash", "input-hash", 42, run.CodeVersion)
	manifest := run.NewManifest(core.RunID(id), replay, core.Fingerprint("out-"+id), 2, 7)
	manifest.CreatedAt = core.NewTimestamp(created)
	return &run.Run{
		Manifest: manifest,
		Compounds: []ranking.CompoundAggregate{
			{
				CompoundID:      "cmpd-b",
				Score:           -2.5,
				MedianScore:     -1.1,
				TotalSignatures: 4,
				ReverserCount:   3,
				ContextCount:    2,
				Conflict:        true,
				CentralTendency: ranking.CentralWeightedMedian,
				Tier:            ranking.TierMedium,
				Status:          ranking.StatusOK,
			},
			{
				CompoundID:      "cmpd-a",
				TotalSignatures: 3,
				CentralTendency: ranking.CentralNone,
				Tier:            ranking.TierExploratory,
				Status:          ranking.StatusNoReverserContext,
			},
		},
		Significance: []ranking.SignificanceResult{
			{CompoundID: "cmpd-a", PValue: 1, QValue: 1, FDRMethod: "BH"},
			{CompoundID: "cmpd-b", Observed: -2.5, PValue: 0.004, QValue: 0.008, CILower: -3, CIUpper: -2, CIExcludesZero: true, ConfidenceLevel: 0.95, Permutations: 1000, BootstrapSamples: 1000, FDRMethod: "BH"},
		},
	}
}

func TestRunRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(newTestDB(t))

	created := time.Date(2026, 3, 1, 12, 0, 0, 123, time.UTC)
	want := sampleRun("run-1", created)
	require.NoError(t, repo.SaveRun(ctx, want))

	got, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, want.Compounds, got.Compounds, "compounds come back in rank order")
	assert.Equal(t, want.Significance, got.Significance)
	assert.Equal(t, want.Manifest.Replay, got.Manifest.Replay)
	assert.Equal(t, want.Manifest.OutputFingerprint, got.Manifest.OutputFingerprint)
	assert.True(t, created.Equal(got.Manifest.CreatedAt.Time()))
}

func TestRunRepository_GetMissing(t *testing.T) {
	repo := NewRunRepository(newTestDB(t))

	_, err := repo.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, core.ErrRunNotFound)
}

func TestRunRepository_DuplicateRunRollsBack(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewRunRepository(db)

	r := sampleRun("run-1", time.Now().UTC())
	require.NoError(t, repo.SaveRun(ctx, r))

	err := repo.SaveRun(ctx, r)
	require.Error(t, err)
	assert.Equal(t, errors.CodeDatabaseError, errors.GetCode(err))

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM compound_aggregates`))
	assert.Equal(t, 2, count)
}

func TestRunRepository_RejectsInvalidManifest(t *testing.T) {
	repo := NewRunRepository(newTestDB(t))

	err := repo.SaveRun(context.Background(), &run.Run{})
	require.Error(t, err)
	assert.Equal(t, errors.CodeValidationError, errors.GetCode(err))
}

func TestRunRepository_ListRuns(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(newTestDB(t))

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveRun(ctx, sampleRun("run-old", base)))
	require.NoError(t, repo.SaveRun(ctx, sampleRun("run-new", base.Add(time.Hour))))
	require.NoError(t, repo.SaveRun(ctx, sampleRun("run-mid", base.Add(time.Minute))))

	all, err := repo.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, core.RunID("run-new"), all[0].RunID)
	assert.Equal(t, core.RunID("run-mid"), all[1].RunID)
	assert.Equal(t, core.RunID("run-old"), all[2].RunID)

	limited, err := repo.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, 7, limited[0].SignatureCount)
}

func TestMigrationRunner_Idempotent(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, migration.NewRunner().Run(context.Background(), db))
}

func TestConnect_SQLite(t *testing.T) {
	db, err := Connect(context.Background(), "sqlite3", ":memory:", 1)
	require.NoError(t, err)
	defer db.Close()

	repo := NewRunRepository(db)
	require.NoError(t, repo.SaveRun(context.Background(), sampleRun("run-1", time.Now().UTC())))
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := Connect(context.Background(), "nosuchdriver", "x", 1)
	require.Error(t, err)
	assert.Equal(t, errors.CodeDatabaseError, errors.GetCode(err))
}
