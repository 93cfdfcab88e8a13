package signature

import (
	"strings"

	"gorevsig/domain/core"
)

// Field names a logical column of the signature table
type Field string

const (
	FieldID             Field = "id"
	FieldCompound       Field = "compound"
	FieldValueUp        Field = "value_up"
	FieldValueDown      Field = "value_down"
	FieldFDRUp          Field = "fdr_up"
	FieldFDRDown        Field = "fdr_down"
	FieldSignificance   Field = "significance"
	FieldContext        Field = "context"
	FieldDuration       Field = "duration"
	FieldDose           Field = "dose"
	FieldDirectionLabel Field = "direction_label"
)

// RequiredFields must be present in every signature table
var RequiredFields = []Field{FieldCompound, FieldValueUp, FieldValueDown}

// columnAliases lists accepted header spellings per field, matched
// case-insensitively after trimming.
var columnAliases = map[Field][]string{
	FieldID:             {"id", "sig_id", "signature_id"},
	FieldCompound:       {"compound", "compound_id", "pert_iname", "drug", "perturbagen"},
	FieldValueUp:        {"value_up", "up", "score_up", "es_up"},
	FieldValueDown:      {"value_down", "down", "score_down", "es_down"},
	FieldFDRUp:          {"fdr_up", "q_up", "qvalue_up"},
	FieldFDRDown:        {"fdr_down", "q_down", "qvalue_down"},
	FieldSignificance:   {"significance", "combined_significance", "neg_log10_p"},
	FieldContext:        {"context", "cell", "cell_id", "cell_line"},
	FieldDuration:       {"duration", "pert_time", "time"},
	FieldDose:           {"dose", "pert_dose"},
	FieldDirectionLabel: {"direction_label", "type", "direction"},
}

// Schema is the capability set of one input table, resolved once at
// ingestion so per-record scoring never checks column presence.
type Schema struct {
	Columns map[Field]int `json:"columns"`
}

// Probe resolves header columns into a Schema. Missing required columns are
// an error; missing optional columns only switch the matching feature off.
func Probe(header []string) (Schema, error) {
	lookup := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, seen := lookup[key]; !seen {
			lookup[key] = i
		}
	}

	schema := Schema{Columns: make(map[Field]int)}
	for field, aliases := range columnAliases {
		for _, alias := range aliases {
			if idx, ok := lookup[alias]; ok {
				schema.Columns[field] = idx
				break
			}
		}
	}

	for _, field := range RequiredFields {
		if !schema.Has(field) {
			return Schema{}, core.NewMissingColumnError(string(field))
		}
	}
	return schema, nil
}

// ProbeRecords derives the capability set of already-typed records
func ProbeRecords(records []Record) Schema {
	schema := Schema{Columns: map[Field]int{
		FieldCompound:  -1,
		FieldValueUp:   -1,
		FieldValueDown: -1,
	}}
	mark := func(f Field) { schema.Columns[f] = -1 }
	for _, r := range records {
		if r.ID != "" {
			mark(FieldID)
		}
		if r.FDRUp != nil {
			mark(FieldFDRUp)
		}
		if r.FDRDown != nil {
			mark(FieldFDRDown)
		}
		if r.Significance != nil {
			mark(FieldSignificance)
		}
		if r.Context != "" {
			mark(FieldContext)
		}
		if r.Duration != "" {
			mark(FieldDuration)
		}
		if r.Dose != "" {
			mark(FieldDose)
		}
		if r.DirectionLabel != "" {
			mark(FieldDirectionLabel)
		}
	}
	return schema
}

// Has reports whether the field was found
func (s Schema) Has(f Field) bool {
	_, ok := s.Columns[f]
	return ok
}

// Index returns the column index of f, or -1
func (s Schema) Index(f Field) int {
	if idx, ok := s.Columns[f]; ok {
		return idx
	}
	return -1
}

// HasSignificanceInputs reports whether any FDR column is present
func (s Schema) HasSignificanceInputs() bool {
	return s.Has(FieldFDRUp) || s.Has(FieldFDRDown)
}

// Capabilities lists the optional features enabled by this schema
func (s Schema) Capabilities() []string {
	var caps []string
	if s.HasSignificanceInputs() {
		caps = append(caps, "fdr_filter")
	}
	if s.Has(FieldSignificance) {
		caps = append(caps, "confidence_weight")
	}
	if s.Has(FieldContext) {
		caps = append(caps, "context")
	}
	if s.Has(FieldDuration) {
		caps = append(caps, "duration_weight")
	}
	if s.Has(FieldDirectionLabel) {
		caps = append(caps, "label_audit")
	}
	return caps
}
