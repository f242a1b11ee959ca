package core

// Row is one physical row of cell values. Rows are fixed-width: the
// extraction stage pads short rows to the header width.
type Row []string

// ScoreContribution records one detector's signed score delta for a
// column. Contributions are an append-only audit trail; they are never
// mutated after being attached to a column.
type ScoreContribution struct {
	Detector string  `json:"detector"`
	Delta    float64 `json:"delta"`
}

// MappedColumn is a physical column bound to a schema field.
type MappedColumn struct {
	// Header is the original header text of the physical column.
	Header string `json:"header"`
	// Index is the zero-based physical column index.
	Index int `json:"index"`
	// Field is the schema field this column was scored against.
	Field string `json:"field"`
	// Score is the cumulative score across all contributions.
	Score float64 `json:"score"`
	// Contributions explains how the score was built, in detector order.
	Contributions []ScoreContribution `json:"contributions,omitempty"`
	// Satisfied is the mapper's decision that the score cleared the
	// detector-defined acceptance bar for the field.
	Satisfied bool `json:"satisfied"`
}

// UnmappedColumn is a physical column no schema field claimed.
type UnmappedColumn struct {
	Header string `json:"header"`
	Index  int    `json:"index"`
	// OutputHeader is the fallback label used when exporting the column.
	OutputHeader string `json:"output_header"`
}

// MappedColumnSet holds the mapping outcome for one table.
type MappedColumnSet struct {
	Mapped   []MappedColumn   `json:"mapped"`
	Unmapped []UnmappedColumn `json:"unmapped"`
	// WinnerByField names the winning column index per schema field.
	// Only satisfied columns can win; ties break to the first-seen column.
	WinnerByField map[string]int `json:"winner_by_field,omitempty"`
}

// Winner returns the winning mapped column for a field, if any.
func (s *MappedColumnSet) Winner(field string) (MappedColumn, bool) {
	idx, ok := s.WinnerByField[field]
	if !ok {
		return MappedColumn{}, false
	}
	for _, mc := range s.Mapped {
		if mc.Index == idx && mc.Field == field {
			return mc, true
		}
	}
	return MappedColumn{}, false
}

// ValidationIssue is a per-row or table-level data problem. Issues are
// data, not errors: they aggregate into counters and never abort a run.
type ValidationIssue struct {
	// Row is the zero-based row index, or nil for table-level issues.
	Row *int `json:"row,omitempty"`
	// Field names the schema field concerned, if any.
	Field    string         `json:"field,omitempty"`
	Code     string         `json:"code"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

// NormalizedTable is one extracted table. It is immutable after the
// mapping stage attaches its column set and issues.
type NormalizedTable struct {
	// SourceFile is the path of the file the table came from.
	SourceFile string `json:"source_file"`
	// SheetName is the sheet the table came from; for CSV sources the
	// extraction stage uses the file's base name.
	SheetName string `json:"sheet_name"`
	// TableIndex is the zero-based position of the table within its sheet.
	TableIndex int `json:"table_index"`
	// Header is the raw header row.
	Header []string `json:"header"`
	// Rows are the data rows, padded to the header width.
	Rows []Row `json:"rows"`
	// Columns is the mapping outcome for this table.
	Columns MappedColumnSet `json:"columns"`
	// Issues are validation problems found in this table.
	Issues []ValidationIssue `json:"issues,omitempty"`
}
