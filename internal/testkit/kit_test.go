package testkit

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorevsig/domain/core"
	"gorevsig/domain/run"
)

func TestSignatureGenerator_Deterministic(t *testing.T) {
	config := DefaultSignatureConfig()

	a := NewSignatureGenerator(config).GenerateRecords()
	b := NewSignatureGenerator(config).GenerateRecords()

	require.Len(t, a, config.CompoundCount*config.SignaturesPerCompound)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
		if math.IsNaN(a[i].ValueDown) {
			assert.True(t, math.IsNaN(b[i].ValueDown))
			continue
		}
		assert.Equal(t, a[i].ValueUp, b[i].ValueUp)
		assert.Equal(t, a[i].ValueDown, b[i].ValueDown)
	}
}

func TestSignatureGenerator_ReverserProfileIsNegative(t *testing.T) {
	config := DefaultSignatureConfig()
	config.NoiseSD = 0.01
	config.InvalidRate = 0
	gen := NewSignatureGenerator(config)

	for _, r := range gen.GenerateRecords() {
		if r.CompoundID != CompoundID(0) {
			continue
		}
		require.Equal(t, ProfileReverser, gen.ProfileOf(0))
		assert.Less(t, r.ValueUp, 0.0)
		assert.Less(t, r.ValueDown, 0.0)
	}
}

func TestSignatureGenerator_Table(t *testing.T) {
	config := DefaultSignatureConfig()
	config.CompoundCount = 2
	config.SignaturesPerCompound = 3

	table := NewSignatureGenerator(config).GenerateTable()
	assert.Len(t, table.Header, 9)
	assert.Len(t, table.Rows, 6)
	for _, row := range table.Rows {
		assert.Len(t, row, len(table.Header))
	}
	assert.Equal(t, "cmpd-000", table.Rows[0][1])
}

func testRun(id string) *run.Run {
	replay := run.NewRunFingerprint("cfg", "input", 42, run.CodeVersion)
	return &run.Run{
		Manifest: run.NewManifest(core.RunID(id), replay, core.Fingerprint("out-"+id), 1, 1),
	}
}

func TestInMemoryRunRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRunRepository()

	require.NoError(t, repo.SaveRun(ctx, testRun("run-a")))
	require.NoError(t, repo.SaveRun(ctx, testRun("run-b")))

	got, err := repo.GetRun(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, core.RunID("run-a"), got.Manifest.RunID)

	_, err = repo.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrRunNotFound)
	assert.ErrorIs(t, err, core.ErrNotFound)

	manifests, err := repo.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, manifests, 1)
	assert.Equal(t, core.RunID("run-b"), manifests[0].RunID)

	assert.Equal(t, 2, repo.Saves())
	assert.Equal(t, []core.RunID{"run-a", "run-b"}, repo.RunIDs())
}

func TestInMemoryRunRepository_RejectsIncompleteManifest(t *testing.T) {
	repo := NewInMemoryRunRepository()
	err := repo.SaveRun(context.Background(), &run.Run{})
	assert.Error(t, err)
	assert.Equal(t, 0, repo.Saves())
}
