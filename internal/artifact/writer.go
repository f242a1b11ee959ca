// Package artifact accumulates the durable JSON record of one run and
// writes it atomically, so a crash mid-write never corrupts a previous
// artifact.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tabmap-io/tabmap/pkg/core"
)

// ErrAlreadyMarked is returned when a run outcome is recorded twice.
var ErrAlreadyMarked = errors.New("artifact outcome already recorded")

// runRecord is the run identity and outcome section of the artifact.
type runRecord struct {
	RunID          string            `json:"run_id"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	StartedAt      time.Time         `json:"started_at"`
	Status         core.RunStatus    `json:"status"`
	Failure        *core.RunError    `json:"failure,omitempty"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	OutputPaths    []string          `json:"output_paths,omitempty"`
	ProcessedFiles []string          `json:"processed_files,omitempty"`
}

// configRecord is the config identity section of the artifact.
type configRecord struct {
	SchemaID      string   `json:"schema_id"`
	SchemaVersion string   `json:"schema_version,omitempty"`
	SchemaName    string   `json:"schema_name,omitempty"`
	PackageDir    string   `json:"package_dir,omitempty"`
	Modules       []string `json:"modules,omitempty"`
}

// tableRecord is the serializable projection of one normalized table.
// Raw rows are deliberately excluded; the artifact records mappings and
// issues, not data.
type tableRecord struct {
	SourceFile string                 `json:"source_file"`
	SheetName  string                 `json:"sheet_name"`
	TableIndex int                    `json:"table_index"`
	Header     []string               `json:"header"`
	Mapped     []core.MappedColumn    `json:"mapped_columns"`
	Unmapped   []core.UnmappedColumn  `json:"unmapped_columns"`
	Issues     []core.ValidationIssue `json:"issues,omitempty"`
	RowsTotal  int                    `json:"rows_total"`
}

// document is the artifact's top-level JSON shape.
type document struct {
	Run    runRecord     `json:"run"`
	Config configRecord  `json:"config"`
	Tables []tableRecord `json:"tables"`
	Notes  []string      `json:"notes"`
}

// Writer accumulates the artifact in memory and flushes it atomically.
type Writer struct {
	path    string
	runRoot string
	logger  *slog.Logger

	doc    document
	marked bool
}

// NewWriter creates an artifact writer for the destination path.
func NewWriter(path, runRoot string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Writer{
		path:    path,
		runRoot: runRoot,
		logger:  logger,
		doc: document{
			Tables: []tableRecord{},
			Notes:  []string{},
		},
	}
}

// Start captures run and config identity.
func (w *Writer) Start(runCtx core.RunContext, m *core.Manifest, packageDir string, modules []string) {
	w.doc.Run = runRecord{
		RunID:     runCtx.RunID,
		Metadata:  runCtx.Metadata,
		StartedAt: runCtx.StartedAt,
		Status:    core.RunStatusRunning,
	}
	if m != nil {
		w.doc.Config = configRecord{
			SchemaID:      m.SchemaID,
			SchemaVersion: m.SchemaVersion,
			SchemaName:    m.SchemaName,
			PackageDir:    packageDir,
			Modules:       modules,
		}
	}
}

// RecordTable appends a table projection, contribution trails included.
func (w *Writer) RecordTable(t *core.NormalizedTable) {
	w.doc.Tables = append(w.doc.Tables, tableRecord{
		SourceFile: w.relativize(t.SourceFile),
		SheetName:  t.SheetName,
		TableIndex: t.TableIndex,
		Header:     t.Header,
		Mapped:     t.Columns.Mapped,
		Unmapped:   t.Columns.Unmapped,
		Issues:     t.Issues,
		RowsTotal:  len(t.Rows),
	})
}

// Note appends a free-text annotation.
func (w *Writer) Note(text string) {
	w.doc.Notes = append(w.doc.Notes, text)
}

// MarkSuccess records a completed run. Exactly one of MarkSuccess and
// MarkFailure may be called.
func (w *Writer) MarkSuccess(outputPaths []string, processedFiles []string, completedAt time.Time) error {
	if w.marked {
		return ErrAlreadyMarked
	}
	w.marked = true
	w.doc.Run.Status = core.RunStatusCompleted
	w.doc.Run.CompletedAt = &completedAt
	for _, p := range outputPaths {
		w.doc.Run.OutputPaths = append(w.doc.Run.OutputPaths, w.relativize(p))
	}
	for _, p := range processedFiles {
		w.doc.Run.ProcessedFiles = append(w.doc.Run.ProcessedFiles, w.relativize(p))
	}
	return nil
}

// MarkFailure records a failed run with a structured error.
func (w *Writer) MarkFailure(code, stage, message string) error {
	if w.marked {
		return ErrAlreadyMarked
	}
	w.marked = true
	w.doc.Run.Status = core.RunStatusFailed
	w.doc.Run.Failure = &core.RunError{Code: code, Stage: stage, Message: message}
	return nil
}

// Flush serializes the document and writes it to the destination path
// via write-to-temp-then-rename.
func (w *Writer) Flush() error {
	data, err := json.MarshalIndent(w.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize artifact: %w", err)
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".artifact-*.json")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename artifact: %w", err)
	}

	w.logger.Debug("artifact flushed", "path", w.path, "tables", len(w.doc.Tables), "bytes", len(data))
	return nil
}

// relativize rewrites a path relative to the run root when it sits
// underneath it.
func (w *Writer) relativize(path string) string {
	if w.runRoot == "" || path == "" {
		return path
	}
	rel, err := filepath.Rel(w.runRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
