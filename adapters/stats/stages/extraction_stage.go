package stages

import (
	"context"
	"fmt"
	"strings"

	"gorevsig/domain/core"
	"gorevsig/domain/signature"
	"gorevsig/domain/stage"
	"gorevsig/internal"
	"gorevsig/internal/errors"
)

// ExtractionStage turns the input into typed records with a probed schema
type ExtractionStage struct {
	logger *internal.Logger
}

// NewExtractionStage creates a new extraction stage
func NewExtractionStage(logger *internal.Logger) *ExtractionStage {
	return &ExtractionStage{logger: logger}
}

func (s *ExtractionStage) Name() stage.StageName { return stage.StageExtraction }

// Execute probes the schema once and decodes every row
func (s *ExtractionStage) Execute(ctx context.Context, st *State) (stage.StageResult, error) {
	result := stage.NewStageResult(s.Name(), 0)

	switch {
	case st.Input.Records != nil:
		st.Records = s.fromRecords(st.Input.Records, &result)
		st.Schema = signature.ProbeRecords(st.Records)
	case st.Input.Table != nil:
		schema, err := signature.Probe(st.Input.Table.Header)
		if err != nil {
			return result, errors.WithCode(errors.CodeInvalidInput, err)
		}
		st.Schema = schema
		st.Records = s.fromTable(schema, st.Input.Table.Rows, &result)
	default:
		st.Schema = signature.ProbeRecords(nil)
		st.Records = []signature.Record{}
	}

	result.Metrics.SuccessCount = len(st.Records)
	s.logger.Debug("extracted %d records, %s", len(st.Records), capabilityNote(st.Schema))
	return result, nil
}

func (s *ExtractionStage) fromTable(schema signature.Schema, rows [][]string, result *stage.StageResult) []signature.Record {
	decoder := rowDecoder{schema: schema}
	records := make([]signature.Record, 0, len(rows))
	for i, row := range rows {
		result.Metrics.ProcessedCount++
		rec, ok := decoder.decode(i, row)
		if !ok {
			s.logger.Warn("row %d has no compound identifier, skipping", i)
			result.Skip("missing_compound")
			continue
		}
		records = append(records, rec)
	}
	return records
}

func (s *ExtractionStage) fromRecords(in []signature.Record, result *stage.StageResult) []signature.Record {
	records := make([]signature.Record, 0, len(in))
	for i, rec := range in {
		result.Metrics.ProcessedCount++
		rec.CompoundID = core.CompoundID(strings.TrimSpace(string(rec.CompoundID)))
		if rec.CompoundID == "" {
			s.logger.Warn("record %d has no compound identifier, skipping", i)
			result.Skip("missing_compound")
			continue
		}
		if rec.ID == "" {
			rec.ID = core.SignatureID(rowID(i))
		}
		records = append(records, rec)
	}
	return records
}

func capabilityNote(schema signature.Schema) string {
	caps := schema.Capabilities()
	if len(caps) == 0 {
		return "capabilities: none"
	}
	return fmt.Sprintf("capabilities: %s", strings.Join(caps, ","))
}
