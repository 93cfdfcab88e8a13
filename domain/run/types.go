package run

import (
	"crypto/sha256"
	"fmt"

	"gorevsig/domain/core"
	"gorevsig/domain/ranking"
)

// Run is a persisted ranking run: its manifest and its two result tables
type Run struct {
	Manifest     Manifest                     `json:"manifest"`
	Compounds    []ranking.CompoundAggregate  `json:"compounds"`
	Significance []ranking.SignificanceResult `json:"significance"`
}

// RunFingerprint identifies the inputs a run is replayable from. Two runs
// with the same fingerprint must produce the same output fingerprint.
type RunFingerprint struct {
	ConfigHash  core.ConfigHash `json:"config_hash"`
	InputHash   core.TableHash  `json:"input_hash"`
	Seed        int64           `json:"seed"`
	CodeVersion string          `json:"code_version"`
	Fingerprint core.Hash       `json:"fingerprint"` // Hash of all above
}

// NewRunFingerprint creates a fingerprint from determinism parameters
func NewRunFingerprint(configHash core.ConfigHash, inputHash core.TableHash, seed int64, codeVersion string) RunFingerprint {
	return RunFingerprint{
		ConfigHash:  configHash,
		InputHash:   inputHash,
		Seed:        seed,
		CodeVersion: codeVersion,
		Fingerprint: computeRunFingerprint(configHash, inputHash, seed, codeVersion),
	}
}

func computeRunFingerprint(configHash core.ConfigHash, inputHash core.TableHash, seed int64, codeVersion string) core.Hash {
	data := fmt.Sprintf("config:%s|input:%s|seed:%d|code:%s", configHash, inputHash, seed, codeVersion)
	hash := sha256.Sum256([]byte(data))
	return core.Hash(fmt.Sprintf("%x", hash))
}
