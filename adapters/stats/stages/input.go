package stages

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gorevsig/domain/core"
	"gorevsig/domain/signature"
)

// RawTable is an untyped signature table as read from a file or request
type RawTable struct {
	Header []string
	Rows   [][]string
}

// Input is either a raw table or already typed records. Records win when
// both are set.
type Input struct {
	Table   *RawTable
	Records []signature.Record
}

// rowDecoder turns raw rows into records using a probed schema
type rowDecoder struct {
	schema signature.Schema
}

func (d rowDecoder) cell(row []string, f signature.Field) (string, bool) {
	idx := d.schema.Index(f)
	if idx < 0 || idx >= len(row) {
		return "", false
	}
	return strings.TrimSpace(row[idx]), true
}

// required numeric cells: malformed or missing values become NaN
func (d rowDecoder) value(row []string, f signature.Field) float64 {
	raw, ok := d.cell(row, f)
	if !ok || raw == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// optional numeric cells: empty means absent, malformed becomes NaN
func (d rowDecoder) optional(row []string, f signature.Field) *float64 {
	raw, ok := d.cell(row, f)
	if !ok || raw == "" || strings.EqualFold(raw, "na") || strings.EqualFold(raw, "null") {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		v = math.NaN()
	}
	return &v
}

func (d rowDecoder) text(row []string, f signature.Field) string {
	s, _ := d.cell(row, f)
	return s
}

func (d rowDecoder) decode(index int, row []string) (signature.Record, bool) {
	compound := d.text(row, signature.FieldCompound)
	if compound == "" {
		return signature.Record{}, false
	}
	id := d.text(row, signature.FieldID)
	if id == "" {
		id = rowID(index)
	}
	return signature.Record{
		ID:             core.SignatureID(id),
		CompoundID:     core.CompoundID(compound),
		ValueUp:        d.value(row, signature.FieldValueUp),
		ValueDown:      d.value(row, signature.FieldValueDown),
		FDRUp:          d.optional(row, signature.FieldFDRUp),
		FDRDown:        d.optional(row, signature.FieldFDRDown),
		Significance:   d.optional(row, signature.FieldSignificance),
		Context:        core.ContextID(d.text(row, signature.FieldContext)),
		Duration:       d.text(row, signature.FieldDuration),
		Dose:           d.text(row, signature.FieldDose),
		DirectionLabel: d.text(row, signature.FieldDirectionLabel),
	}, true
}

func rowID(index int) string {
	return fmt.Sprintf("sig-%d", index)
}
