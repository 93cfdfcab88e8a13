package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorevsig/internal/errors"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.False(t, cfg.Database.Enabled())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("REVSIG_RANKING_SEED", "7")
	t.Setenv("REVSIG_RANKING_SCORING_MODE", "continuous")
	t.Setenv("REVSIG_RANKING_CONTEXT_WEIGHTS", "MCF7:1.5,A549:0.8")
	t.Setenv("REVSIG_RANKING_FILTER_SIGNIFICANCE", "false")
	t.Setenv("REVSIG_DATABASE_URL", "postgres://localhost/revsig")
	t.Setenv("REVSIG_SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(7), cfg.Ranking.Seed)
	assert.Equal(t, "continuous", cfg.Ranking.ScoringMode)
	assert.Equal(t, map[string]float64{"MCF7": 1.5, "A549": 0.8}, cfg.Ranking.ContextWeights)
	assert.False(t, cfg.Ranking.FilterSignificance)
	assert.True(t, cfg.Database.Enabled())
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown scoring mode", "REVSIG_RANKING_SCORING_MODE", "fuzzy"},
		{"unknown normalization", "REVSIG_RANKING_NORMALIZATION", "zscore"},
		{"zero permutations", "REVSIG_RANKING_PERMUTATIONS", "0"},
		{"confidence level of one", "REVSIG_RANKING_CONFIDENCE_LEVEL", "1"},
		{"negative context weight", "REVSIG_RANKING_CONTEXT_WEIGHTS", "MCF7:-1"},
		{"unparseable seed", "REVSIG_RANKING_SEED", "abc"},
		{"external without values", "REVSIG_RANKING_REFERENCE_MODE", "external"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid), "got %v", err)
		})
	}
}

func TestRankingConfig_Validate(t *testing.T) {
	r := DefaultRanking()
	assert.NoError(t, r.Validate())

	r.ReferenceMode = "external"
	r.ExternalReference = []float64{0.1, -0.4}
	assert.NoError(t, r.Validate())

	r.MinReversers = 0
	assert.Error(t, r.Validate())
}
