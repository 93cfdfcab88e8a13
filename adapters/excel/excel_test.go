package excel

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"gorevsig/domain/ranking"
	"gorevsig/domain/signature"
	"gorevsig/internal"
)

const sampleCSV = `sig_id,pert_iname,cell_id,up,down
s1, cmpd-a ,MCF7,-1.5,-0.5

s2,cmpd-b,A549,0.3
`

func TestParseCSV(t *testing.T) {
	table, err := ParseCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, []string{"sig_id", "pert_iname", "cell_id", "up", "down"}, table.Header)
	require.Len(t, table.Rows, 2, "blank lines are skipped")
	assert.Equal(t, "cmpd-a", table.Rows[0][1])
	assert.Equal(t, []string{"s2", "cmpd-b", "A549", "0.3", ""}, table.Rows[1], "short rows are padded")
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestDataReader_CSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signatures.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	table, err := NewDataReader(DefaultExcelConfig(path), internal.Discard).ReadTable()
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2)
}

func TestDataReader_XLSXFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signatures.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow(InputSheet, "A1", &[]interface{}{"compound", "up", "down"}))
	require.NoError(t, f.SetSheetRow(InputSheet, "A2", &[]interface{}{"cmpd-a", -1.5, -0.5}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	table, err := NewDataReader(DefaultExcelConfig(path), internal.Discard).ReadTable()
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, []string{"cmpd-a", "-1.5", "-0.5"}, table.Rows[0])
}

func TestDataReader_MissingFile(t *testing.T) {
	_, err := NewDataReader(DefaultExcelConfig("/nonexistent/file.xlsx"), internal.Discard).ReadTable()
	assert.Error(t, err)
}

func TestFileType(t *testing.T) {
	assert.Equal(t, "csv", FileType("data.CSV"))
	assert.Equal(t, "xlsx", FileType("data.xlsx"))
	assert.Equal(t, "xlsx", FileType("data"))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.xlsx")
	wb := Workbook{
		Compounds: []ranking.CompoundAggregate{
			{CompoundID: "cmpd-a", Score: -1.25, Tier: ranking.TierLow, Status: ranking.StatusOK},
		},
		Significance: []ranking.SignificanceResult{
			{CompoundID: "cmpd-a", PValue: 0.01, QValue: 0.02, FDRMethod: "BH"},
		},
		Signatures: []signature.Ranked{{
			Scored: signature.Scored{
				Record:    signature.Record{ID: "s1", CompoundID: "cmpd-a", ValueUp: -1, ValueDown: math.NaN()},
				Direction: signature.DirectionInvalid,
			},
		}},
		Contexts: []ranking.ContextSummary{{CompoundID: "cmpd-a", Context: "MCF7", Records: 1}},
	}
	require.NoError(t, WriteFile(path, wb))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{CompoundsSheet, SignificanceSheet, SignaturesSheet, ContextsSheet}, f.GetSheetList())

	rows, err := f.GetRows(CompoundsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "compound_id", rows[0][0])
	assert.Equal(t, "cmpd-a", rows[1][0])
	assert.Equal(t, "-1.25", rows[1][1])

	rows, err = f.GetRows(SignaturesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "", rows[1][5], "NaN is written as a blank cell")
	assert.Equal(t, "invalid", rows[1][6])
}
