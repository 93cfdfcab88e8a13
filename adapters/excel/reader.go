package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"gorevsig/adapters/stats/stages"
	"gorevsig/internal"
)

// DataReader handles reading Excel and CSV signature tables
type DataReader struct {
	config   ExcelConfig
	fileType string // "xlsx" or "csv"
	logger   *internal.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(config ExcelConfig, logger *internal.Logger) *DataReader {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if config.SheetName == "" {
		config.SheetName = InputSheet
	}
	return &DataReader{
		config:   config,
		fileType: FileType(config.FilePath),
		logger:   logger.With("excel"),
	}
}

// FileType returns "csv" for .csv paths and "xlsx" otherwise
func FileType(path string) string {
	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		return "csv"
	}
	return "xlsx"
}

// ReadTable reads the configured file into an untyped signature table
func (r *DataReader) ReadTable() (*stages.RawTable, error) {
	r.logger.Debug("reading %s file: %s", r.fileType, r.config.FilePath)

	if _, err := os.Stat(r.config.FilePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.config.FilePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSV()
	case "xlsx":
		return r.readExcel()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

func (r *DataReader) readExcel() (*stages.RawTable, error) {
	started := time.Now()
	f, err := excelize.OpenFile(r.config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(r.config.SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.config.SheetName, err)
	}
	r.logger.Debug("%s read in %dms (%d rows)", r.config.SheetName, time.Since(started).Milliseconds(), len(rows))
	return toTable(rows)
}

func (r *DataReader) readCSV() (*stages.RawTable, error) {
	file, err := os.Open(r.config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()
	return ParseCSV(file)
}

// ParseCSV reads a CSV signature table from an arbitrary reader
func ParseCSV(in io.Reader) (*stages.RawTable, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return toTable(rows)
}

// toTable trims cells and pads short rows to the header width. Excel drops
// trailing empty cells, so ragged rows are normal.
func toTable(rows [][]string) (*stages.RawTable, error) {
	if len(rows) < 1 {
		return nil, fmt.Errorf("file must have at least a header row")
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	table := &stages.RawTable{Header: header, Rows: make([][]string, 0, len(rows)-1)}
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		cells := make([]string, len(header))
		for j := 0; j < len(header) && j < len(row); j++ {
			cells[j] = strings.TrimSpace(row[j])
		}
		table.Rows = append(table.Rows, cells)
	}
	return table, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
