package excel

// Sheet names used by the reader and the writer
const (
	InputSheet        = "Sheet1"
	CompoundsSheet    = "compounds"
	SignificanceSheet = "significance"
	SignaturesSheet   = "signatures"
	ContextsSheet     = "contexts"
)

// ExcelConfig holds configuration for spreadsheet input
type ExcelConfig struct {
	FilePath  string `json:"file_path"`
	SheetName string `json:"sheet_name"` // xlsx only; CSV files have a single table
}

// DefaultExcelConfig returns sensible defaults for spreadsheet processing
func DefaultExcelConfig(path string) ExcelConfig {
	return ExcelConfig{
		FilePath:  path,
		SheetName: InputSheet,
	}
}
