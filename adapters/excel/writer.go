package excel

import (
	"fmt"
	"io"
	"math"

	"github.com/xuri/excelize/v2"

	"gorevsig/domain/ranking"
	"gorevsig/domain/signature"
)

// Workbook is the set of result tables written to one .xlsx file
type Workbook struct {
	Compounds    []ranking.CompoundAggregate
	Significance []ranking.SignificanceResult
	Signatures   []signature.Ranked
	Contexts     []ranking.ContextSummary
}

var (
	compoundHeader = []interface{}{
		"compound_id", "score", "median_score", "reverser_fraction", "total_signatures",
		"significant_signatures", "reverser_count", "context_count", "conflict",
		"central_tendency", "sample_size_factor", "diversity_bonus", "tier", "status",
	}
	significanceHeader = []interface{}{
		"compound_id", "observed", "p_value", "q_value", "effect_z", "normal_p_value",
		"null_mean", "null_std_dev", "ci_lower", "ci_upper", "ci_excludes_zero",
		"confidence_level", "permutations", "bootstrap_samples", "fdr_method",
	}
	signatureHeader = []interface{}{
		"signature_id", "compound_id", "context", "duration", "value_up", "value_down",
		"direction", "score", "strength", "significance_pass", "confidence_weight",
		"normalized_score", "percentile_score",
	}
	contextHeader = []interface{}{
		"compound_id", "context", "records", "normalized_score", "percentile_score", "reference_size",
	}
)

// WriteFile saves the workbook to path
func WriteFile(path string, wb Workbook) error {
	f, err := build(wb)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// Write streams the workbook to w
func Write(w io.Writer, wb Workbook) error {
	f, err := build(wb)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func build(wb Workbook) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(InputSheet, CompoundsSheet); err != nil {
		f.Close()
		return nil, err
	}

	compounds := make([][]interface{}, len(wb.Compounds))
	for i, c := range wb.Compounds {
		compounds[i] = []interface{}{
			string(c.CompoundID), cell(c.Score), cell(c.MedianScore), cell(c.ReverserFraction), c.TotalSignatures,
			c.SignificantSignatures, c.ReverserCount, c.ContextCount, c.Conflict,
			string(c.CentralTendency), cell(c.SampleSizeFactor), cell(c.DiversityBonus), string(c.Tier), string(c.Status),
		}
	}

	significance := make([][]interface{}, len(wb.Significance))
	for i, s := range wb.Significance {
		significance[i] = []interface{}{
			string(s.CompoundID), cell(s.Observed), cell(s.PValue), cell(s.QValue), cell(s.EffectZ), cell(s.NormalPValue),
			cell(s.NullMean), cell(s.NullStdDev), cell(s.CILower), cell(s.CIUpper), s.CIExcludesZero,
			cell(s.ConfidenceLevel), s.Permutations, s.BootstrapSamples, s.FDRMethod,
		}
	}

	signatures := make([][]interface{}, len(wb.Signatures))
	for i, r := range wb.Signatures {
		signatures[i] = []interface{}{
			string(r.Record.ID), string(r.Record.CompoundID), string(r.Record.Context), r.Record.Duration,
			cell(r.Record.ValueUp), cell(r.Record.ValueDown),
			string(r.Direction), cell(r.Score), cell(r.Strength), r.SignificancePass, cell(r.ConfidenceWeight),
			cell(r.NormalizedScore), cell(r.PercentileScore),
		}
	}

	contexts := make([][]interface{}, len(wb.Contexts))
	for i, c := range wb.Contexts {
		contexts[i] = []interface{}{
			string(c.CompoundID), string(c.Context), c.Records, cell(c.NormalizedScore), cell(c.PercentileScore), c.ReferenceSize,
		}
	}

	sheets := []struct {
		name   string
		header []interface{}
		rows   [][]interface{}
	}{
		{CompoundsSheet, compoundHeader, compounds},
		{SignificanceSheet, significanceHeader, significance},
		{SignaturesSheet, signatureHeader, signatures},
		{ContextsSheet, contextHeader, contexts},
	}
	for i, s := range sheets {
		if i > 0 {
			if _, err := f.NewSheet(s.name); err != nil {
				f.Close()
				return nil, err
			}
		}
		if err := writeSheet(f, s.name, s.header, s.rows); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write sheet %s: %w", s.name, err)
		}
	}
	return f, nil
}

func writeSheet(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i := range rows {
		addr, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, addr, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

// cell leaves non-finite values blank
func cell(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return v
}
