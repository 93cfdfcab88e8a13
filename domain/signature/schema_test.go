package signature

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"gorevsig/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe(t *testing.T) {
	t.Run("aliases and optional columns", func(t *testing.T) {
		schema, err := Probe([]string{"sig_id", " PERT_INAME ", "up", "down", "cell_id", "type"})
		require.NoError(t, err)

		assert.Equal(t, 1, schema.Index(FieldCompound))
		assert.Equal(t, 2, schema.Index(FieldValueUp))
		assert.Equal(t, 4, schema.Index(FieldContext))
		assert.Equal(t, 5, schema.Index(FieldDirectionLabel))
		assert.False(t, schema.HasSignificanceInputs())
		assert.Equal(t, -1, schema.Index(FieldFDRUp))
		assert.Equal(t, []string{"context", "label_audit"}, schema.Capabilities())
	})

	t.Run("missing required column", func(t *testing.T) {
		_, err := Probe([]string{"compound", "value_up"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrMissingColumn))
	})
}

func TestProbeRecords(t *testing.T) {
	schema := ProbeRecords([]Record{
		{CompoundID: "x", ValueUp: -1, ValueDown: -1},
		{CompoundID: "x", ValueUp: -1, ValueDown: -1, FDRDown: Float(0.01), Context: "A"},
	})
	assert.True(t, schema.HasSignificanceInputs())
	assert.True(t, schema.Has(FieldContext))
	assert.False(t, schema.Has(FieldSignificance))
}

func TestParseDirection(t *testing.T) {
	d, ok := ParseDirection(" Reverse ")
	assert.True(t, ok)
	assert.Equal(t, DirectionReverser, d)

	_, ok = ParseDirection("sideways")
	assert.False(t, ok)
}

func TestRecordJSONNonFinite(t *testing.T) {
	rec := Record{ID: "s1", CompoundID: "x", ValueUp: math.NaN(), ValueDown: math.Inf(-1), FDRUp: Float(math.NaN())}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"s1","compound_id":"x","value_up":null,"value_down":null}`, string(data))

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, math.IsNaN(back.ValueUp))
	assert.True(t, math.IsNaN(back.ValueDown))
	assert.Nil(t, back.FDRUp)
}
