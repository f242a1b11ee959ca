package core

import "time"

// RowCounts tallies physical rows in a scope.
type RowCounts struct {
	Total int `json:"total"`
	Empty int `json:"empty"`
}

// ColumnCounts tallies physical columns in a scope.
type ColumnCounts struct {
	Total int `json:"total"`
	Empty int `json:"empty"`
}

// FieldCounts tallies schema fields in a scope. A field is mapped if it
// was satisfied in at least one table within the scope.
type FieldCounts struct {
	Total    int `json:"total"`
	Required int `json:"required"`
	Mapped   int `json:"mapped"`
	Unmapped int `json:"unmapped"`
}

// Counts is the row/column/field count tuple shared by every scope.
type Counts struct {
	Rows    RowCounts    `json:"rows"`
	Columns ColumnCounts `json:"columns"`
	Fields  FieldCounts  `json:"fields"`
}

// FieldAggregate is the per-field rollup within a scope.
type FieldAggregate struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
	// Mapped is true if the field was satisfied in at least one table
	// within the scope.
	Mapped bool `json:"mapped"`
	// MaxScore is the highest satisfied score seen for the field.
	MaxScore float64 `json:"max_score"`
	// SatisfiedIn lists the scope-child ids in which the field was
	// satisfied, sorted.
	SatisfiedIn []string `json:"satisfied_in,omitempty"`
}

// HeaderAggregate is the per-distinct-header rollup within a scope.
// Headers are compared case-insensitively after trimming.
type HeaderAggregate struct {
	Header      string   `json:"header"`
	Occurrences int      `json:"occurrences"`
	Mapped      bool     `json:"mapped"`
	Fields      []string `json:"fields,omitempty"`
}

// ValidationAggregate is the validation-issue rollup within a scope.
type ValidationAggregate struct {
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity,omitempty"`
	ByCode     map[string]int `json:"by_code,omitempty"`
	ByField    map[string]int `json:"by_field,omitempty"`
	// MaxSeverity is the highest ranked severity observed. Unranked
	// severities are counted but never promoted to the maximum.
	MaxSeverity Severity `json:"max_severity,omitempty"`
}

// ColumnSummary is the per-physical-column detail on a table summary.
type ColumnSummary struct {
	Header string `json:"header"`
	Index  int    `json:"index"`
	// Empty is true when no row has a value in this column.
	Empty        bool `json:"empty"`
	NonEmptyRows int  `json:"non_empty_rows"`
	// Field is the best-scoring field for this column, empty if unmapped.
	Field     string  `json:"field,omitempty"`
	Score     float64 `json:"score,omitempty"`
	Satisfied bool    `json:"satisfied,omitempty"`
	Mapped    bool    `json:"mapped"`
}

// TableSummary is the immutable snapshot built as each table arrives.
type TableSummary struct {
	TableID    string              `json:"table_id"`
	SheetID    string              `json:"sheet_id"`
	FileID     string              `json:"file_id"`
	RunID      string              `json:"run_id"`
	SourceFile string              `json:"source_file"`
	SheetName  string              `json:"sheet_name"`
	TableIndex int                 `json:"table_index"`
	Counts     Counts              `json:"counts"`
	Columns    []ColumnSummary     `json:"columns"`
	Fields     []FieldAggregate    `json:"fields"`
	Headers    []HeaderAggregate   `json:"headers"`
	Validation ValidationAggregate `json:"validation"`
}

// SheetSummary is the finalize-time snapshot of one sheet scope.
type SheetSummary struct {
	SheetID    string              `json:"sheet_id"`
	FileID     string              `json:"file_id"`
	RunID      string              `json:"run_id"`
	SourceFile string              `json:"source_file"`
	SheetName  string              `json:"sheet_name"`
	Tables     int                 `json:"tables"`
	Counts     Counts              `json:"counts"`
	Fields     []FieldAggregate    `json:"fields"`
	Headers    []HeaderAggregate   `json:"headers"`
	Validation ValidationAggregate `json:"validation"`
}

// FileSummary is the finalize-time snapshot of one file scope.
type FileSummary struct {
	FileID     string              `json:"file_id"`
	RunID      string              `json:"run_id"`
	SourceFile string              `json:"source_file"`
	Sheets     int                 `json:"sheets"`
	Tables     int                 `json:"tables"`
	Counts     Counts              `json:"counts"`
	Fields     []FieldAggregate    `json:"fields"`
	Headers    []HeaderAggregate   `json:"headers"`
	Validation ValidationAggregate `json:"validation"`
}

// RunSummary is the single finalize-time snapshot of the whole run.
type RunSummary struct {
	RunID          string              `json:"run_id"`
	Status         RunStatus           `json:"status"`
	Failure        *RunError           `json:"failure,omitempty"`
	StartedAt      time.Time           `json:"started_at"`
	CompletedAt    time.Time           `json:"completed_at"`
	OutputPaths    []string            `json:"output_paths,omitempty"`
	ProcessedFiles []string            `json:"processed_files,omitempty"`
	Files          int                 `json:"files"`
	Sheets         int                 `json:"sheets"`
	Tables         int                 `json:"tables"`
	Counts         Counts              `json:"counts"`
	Fields         []FieldAggregate    `json:"fields"`
	Headers        []HeaderAggregate   `json:"headers"`
	Validation     ValidationAggregate `json:"validation"`
}
