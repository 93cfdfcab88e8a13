package run

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gorevsig/domain/core"
)

func TestRunFingerprint_Deterministic(t *testing.T) {
	configHash := core.ConfigHash("cfg")
	inputHash := core.TableHash("input")

	fp1 := NewRunFingerprint(configHash, inputHash, 42, CodeVersion)
	fp2 := NewRunFingerprint(configHash, inputHash, 42, CodeVersion)

	assert.Equal(t, fp1.Fingerprint, fp2.Fingerprint)
	assert.Len(t, fp1.Fingerprint.String(), 64)
	assert.Equal(t, configHash, fp1.ConfigHash)
	assert.Equal(t, inputHash, fp1.InputHash)
}

func TestRunFingerprint_SensitiveToEachParameter(t *testing.T) {
	base := NewRunFingerprint("cfg", "input", 42, "1.0.0").Fingerprint

	assert.NotEqual(t, base, NewRunFingerprint("cfg2", "input", 42, "1.0.0").Fingerprint)
	assert.NotEqual(t, base, NewRunFingerprint("cfg", "input2", 42, "1.0.0").Fingerprint)
	assert.NotEqual(t, base, NewRunFingerprint("cfg", "input", 43, "1.0.0").Fingerprint)
	assert.NotEqual(t, base, NewRunFingerprint("cfg", "input", 42, "1.0.1").Fingerprint)
}

func TestManifest_Validate(t *testing.T) {
	replay := NewRunFingerprint("cfg", "input", 1, CodeVersion)
	m := NewManifest(core.NewRunID(), replay, core.Fingerprint("out"), 3, 10)
	assert.NoError(t, m.Validate())
	assert.False(t, m.CreatedAt.IsZero())

	missing := m
	missing.RunID = ""
	assert.Error(t, missing.Validate())

	missing = m
	missing.OutputFingerprint = ""
	assert.Error(t, missing.Validate())
}
