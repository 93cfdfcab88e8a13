package run

import (
	"gorevsig/domain/core"
)

// CodeVersion is stamped into every manifest
const CodeVersion = "1.0.0"

// Manifest is the header of a ranking run
type Manifest struct {
	RunID             core.RunID       `json:"run_id"`
	Replay            RunFingerprint   `json:"replay"`
	OutputFingerprint core.Fingerprint `json:"output_fingerprint"`
	CompoundCount     int              `json:"compound_count"`
	SignatureCount    int              `json:"signature_count"`
	CreatedAt         core.Timestamp   `json:"created_at"`
}

// NewManifest creates a manifest for a finished run
func NewManifest(runID core.RunID, replay RunFingerprint, output core.Fingerprint, compounds, signatures int) Manifest {
	return Manifest{
		RunID:             runID,
		Replay:            replay,
		OutputFingerprint: output,
		CompoundCount:     compounds,
		SignatureCount:    signatures,
		CreatedAt:         core.Now(),
	}
}

// Validate checks if the manifest is complete
func (m Manifest) Validate() error {
	if core.ID(m.RunID).IsEmpty() {
		return core.NewValidationError("run_manifest", "run_id cannot be empty")
	}
	if m.Replay.Fingerprint.IsEmpty() {
		return core.NewValidationError("run_manifest", "replay fingerprint cannot be empty")
	}
	if core.Hash(m.OutputFingerprint).IsEmpty() {
		return core.NewValidationError("run_manifest", "output fingerprint cannot be empty")
	}
	if m.Replay.CodeVersion == "" {
		return core.NewValidationError("run_manifest", "code_version cannot be empty")
	}
	return nil
}
