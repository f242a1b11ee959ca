// Package summary incrementally folds normalized tables into per-sheet,
// per-file and per-run aggregate state, and derives immutable summary
// snapshots. Tables are folded one at a time, so a run never holds all
// rows in memory simultaneously.
package summary

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/tabmap-io/tabmap/pkg/core"
)

// ErrFinalized is returned by AddTable after Finalize, and by a second
// Finalize call. Finalize is exactly-once; a repeat would double-append
// terminal metadata, so it is rejected rather than silently tolerated.
var ErrFinalized = errors.New("aggregator already finalized")

// sheetIdentity pins a sheet state to its parentage.
type sheetIdentity struct {
	fileID     string
	sourceFile string
	sheetName  string
}

// Result is everything Finalize derives.
type Result struct {
	Run    core.RunSummary
	Files  []core.FileSummary
	Sheets []core.SheetSummary
}

// Aggregator is the summary state machine for one run:
// created -> accumulating (AddTable) -> finalized (Finalize, once).
type Aggregator struct {
	runCtx  core.RunContext
	catalog *core.FieldCatalog
	logger  *slog.Logger
	folder  cases.Caser

	run        *scopeState
	files      map[string]*scopeState
	fileOrder  []string
	sheets     map[string]*scopeState
	sheetOrder []string
	sheetMeta  map[string]sheetIdentity

	finalized bool
}

// New creates an aggregator with its field catalog initialized from the
// manifest via the caller.
func New(runCtx core.RunContext, catalog *core.FieldCatalog, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Aggregator{
		runCtx:    runCtx,
		catalog:   catalog,
		logger:    logger,
		folder:    cases.Fold(),
		files:     make(map[string]*scopeState),
		sheets:    make(map[string]*scopeState),
		sheetMeta: make(map[string]sheetIdentity),
	}
}

// normalizeHeader trims and case-folds a header for distinct-header
// comparison.
func (a *Aggregator) normalizeHeader(h string) string {
	return a.folder.String(strings.TrimSpace(h))
}

// AddTable folds one normalized table into the run. It returns the
// immutable table summary it derived.
func (a *Aggregator) AddTable(t *core.NormalizedTable) (core.TableSummary, error) {
	if a.finalized {
		return core.TableSummary{}, ErrFinalized
	}

	fileID := t.SourceFile
	sheetID := fmt.Sprintf("%s::%s", t.SourceFile, t.SheetName)
	tableID := fmt.Sprintf("%s#%d", sheetID, t.TableIndex)

	ts := a.buildTableSummary(t, tableID, sheetID, fileID)

	// Fold into sheet, then file, then run state. Scope states are
	// created lazily on the first table observed in that scope.
	sheet, ok := a.sheets[sheetID]
	if !ok {
		sheet = newScopeState()
		a.sheets[sheetID] = sheet
		a.sheetOrder = append(a.sheetOrder, sheetID)
		a.sheetMeta[sheetID] = sheetIdentity{fileID: fileID, sourceFile: t.SourceFile, sheetName: t.SheetName}
	}
	sheet.merge(ts)

	file, ok := a.files[fileID]
	if !ok {
		file = newScopeState()
		a.files[fileID] = file
		a.fileOrder = append(a.fileOrder, fileID)
	}
	file.merge(ts)

	if a.run == nil {
		a.run = newScopeState()
	}
	a.run.merge(ts)

	a.logger.Debug("table aggregated",
		"table_id", tableID,
		"rows", ts.Counts.Rows.Total,
		"fields_mapped", ts.Counts.Fields.Mapped,
		"issues", ts.Validation.Total)

	return ts, nil
}

// buildTableSummary derives the immutable per-table snapshot: column
// summaries, field/header aggregates, count tuples and the validation
// rollup, in a single pass over the rows.
func (a *Aggregator) buildTableSummary(t *core.NormalizedTable, tableID, sheetID, fileID string) core.TableSummary {
	tracked := trackedIndexes(t)

	// Per-physical-column non-empty counts, and row emptiness: a row is
	// empty only if every tracked column is empty for that row. Cells
	// outside the tracked columns are ignored.
	nonEmpty := make(map[int]int, len(tracked))
	rowsEmpty := 0
	for _, row := range t.Rows {
		rowEmpty := true
		for _, idx := range tracked {
			if idx < len(row) && strings.TrimSpace(row[idx]) != "" {
				nonEmpty[idx]++
				rowEmpty = false
			}
		}
		if rowEmpty {
			rowsEmpty++
		}
	}

	// Candidates and winners by column.
	candidatesByCol := make(map[int][]core.MappedColumn)
	for _, mc := range t.Columns.Mapped {
		candidatesByCol[mc.Index] = append(candidatesByCol[mc.Index], mc)
	}
	wonFieldsByCol := make(map[int][]string)
	for field, idx := range t.Columns.WinnerByField {
		wonFieldsByCol[idx] = append(wonFieldsByCol[idx], field)
	}
	for _, fields := range wonFieldsByCol {
		sort.Strings(fields)
	}

	// Per-field max satisfied score.
	maxSatisfied := make(map[string]float64)
	for _, mc := range t.Columns.Mapped {
		if mc.Satisfied && mc.Score > maxSatisfied[mc.Field] {
			maxSatisfied[mc.Field] = mc.Score
		}
	}

	// The table's own aggregates reuse the scope accumulator, seeded
	// from the catalog so unmapped fields still appear.
	state := newScopeState()
	for _, spec := range a.catalog.Fields() {
		state.fieldEntry(spec.Name, spec.Label, spec.Required)
	}
	for field := range t.Columns.WinnerByField {
		spec, _ := a.catalog.Get(field)
		fs := state.fieldEntry(field, spec.Label, spec.Required)
		fs.mapped = true
		fs.maxScore = maxSatisfied[field]
		fs.satisfiedIn[tableID] = struct{}{}
	}

	columns := make([]core.ColumnSummary, 0, len(tracked))
	for _, idx := range tracked {
		header := ""
		if idx < len(t.Header) {
			header = t.Header[idx]
		}

		cs := core.ColumnSummary{
			Header:       header,
			Index:        idx,
			NonEmptyRows: nonEmpty[idx],
			Empty:        nonEmpty[idx] == 0,
			Mapped:       len(candidatesByCol[idx]) > 0,
		}
		if best, ok := bestCandidate(candidatesByCol[idx]); ok {
			cs.Field = best.Field
			cs.Score = best.Score
			cs.Satisfied = best.Satisfied
		}
		columns = append(columns, cs)

		hs := state.headerEntry(a.normalizeHeader(header))
		hs.occurrences++
		if len(wonFieldsByCol[idx]) > 0 {
			hs.mapped = true
		}
		for _, f := range wonFieldsByCol[idx] {
			hs.fields[f] = struct{}{}
		}
	}

	for _, issue := range t.Issues {
		state.validation.total++
		state.validation.bySeverity[string(issue.Severity)]++
		state.validation.byCode[issue.Code]++
		if issue.Field != "" {
			state.validation.byField[issue.Field]++
		}
		state.validation.maxSeverity = core.MaxSeverity(state.validation.maxSeverity, issue.Severity)
	}

	counts := state.countsSnapshot()
	counts.Rows = core.RowCounts{Total: len(t.Rows), Empty: rowsEmpty}
	counts.Columns = core.ColumnCounts{Total: len(tracked), Empty: emptyColumns(tracked, nonEmpty)}

	return core.TableSummary{
		TableID:    tableID,
		SheetID:    sheetID,
		FileID:     fileID,
		RunID:      a.runCtx.RunID,
		SourceFile: t.SourceFile,
		SheetName:  t.SheetName,
		TableIndex: t.TableIndex,
		Counts:     counts,
		Columns:    columns,
		Fields:     state.fieldsSnapshot(),
		Headers:    state.headersSnapshot(),
		Validation: state.validationSnapshot(),
	}
}

// Finalize records terminal run metadata and derives the sheet, file
// and run summaries. It must be called exactly once.
func (a *Aggregator) Finalize(status core.RunStatus, failure *core.RunError, completedAt time.Time, outputPaths, processedFiles []string) (*Result, error) {
	if a.finalized {
		return nil, ErrFinalized
	}
	a.finalized = true

	if a.run == nil {
		// No tables were observed; the run summary still carries the
		// catalog's fields.
		a.run = newScopeState()
		for _, spec := range a.catalog.Fields() {
			a.run.fieldEntry(spec.Name, spec.Label, spec.Required)
		}
	}

	res := &Result{}

	for _, sheetID := range a.sheetOrder {
		s := a.sheets[sheetID]
		meta := a.sheetMeta[sheetID]
		res.Sheets = append(res.Sheets, core.SheetSummary{
			SheetID:    sheetID,
			FileID:     meta.fileID,
			RunID:      a.runCtx.RunID,
			SourceFile: meta.sourceFile,
			SheetName:  meta.sheetName,
			Tables:     s.tables,
			Counts:     s.countsSnapshot(),
			Fields:     s.fieldsSnapshot(),
			Headers:    s.headersSnapshot(),
			Validation: s.validationSnapshot(),
		})
	}

	for _, fileID := range a.fileOrder {
		f := a.files[fileID]
		sheetCount := 0
		for _, sheetID := range a.sheetOrder {
			if a.sheetMeta[sheetID].fileID == fileID {
				sheetCount++
			}
		}
		res.Files = append(res.Files, core.FileSummary{
			FileID:     fileID,
			RunID:      a.runCtx.RunID,
			SourceFile: fileID,
			Sheets:     sheetCount,
			Tables:     f.tables,
			Counts:     f.countsSnapshot(),
			Fields:     f.fieldsSnapshot(),
			Headers:    f.headersSnapshot(),
			Validation: f.validationSnapshot(),
		})
	}

	res.Run = core.RunSummary{
		RunID:          a.runCtx.RunID,
		Status:         status,
		Failure:        failure,
		StartedAt:      a.runCtx.StartedAt,
		CompletedAt:    completedAt,
		OutputPaths:    outputPaths,
		ProcessedFiles: processedFiles,
		Files:          len(a.fileOrder),
		Sheets:         len(a.sheetOrder),
		Tables:         a.run.tables,
		Counts:         a.run.countsSnapshot(),
		Fields:         a.run.fieldsSnapshot(),
		Headers:        a.run.headersSnapshot(),
		Validation:     a.run.validationSnapshot(),
	}

	a.logger.Info("run summarized",
		"run_id", a.runCtx.RunID,
		"status", string(status),
		"files", res.Run.Files,
		"sheets", res.Run.Sheets,
		"tables", res.Run.Tables)

	return res, nil
}

// trackedIndexes returns the sorted physical column indexes spanned by
// the table's mapped and unmapped columns. Before mapping ran, the
// header's own indexes are tracked.
func trackedIndexes(t *core.NormalizedTable) []int {
	seen := make(map[int]struct{})
	for _, mc := range t.Columns.Mapped {
		seen[mc.Index] = struct{}{}
	}
	for _, uc := range t.Columns.Unmapped {
		seen[uc.Index] = struct{}{}
	}
	if len(seen) == 0 {
		for i := range t.Header {
			seen[i] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// bestCandidate picks the best-scoring mapped candidate for a column,
// preferring the earliest on equal score.
func bestCandidate(candidates []core.MappedColumn) (core.MappedColumn, bool) {
	if len(candidates) == 0 {
		return core.MappedColumn{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best, true
}

// emptyColumns counts tracked columns that have no values at all.
func emptyColumns(tracked []int, nonEmpty map[int]int) int {
	n := 0
	for _, idx := range tracked {
		if nonEmpty[idx] == 0 {
			n++
		}
	}
	return n
}
