// Package extract reads tabular source files (CSV, XLSX) into
// normalized tables. It covers the physical row/cell shape only; column
// mapping and validation happen downstream.
package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/tabmap-io/tabmap/pkg/core"
)

// ErrUnsupportedFormat means the source file extension is not handled.
var ErrUnsupportedFormat = errors.New("unsupported source file format")

// Extractor turns source files into normalized tables.
type Extractor struct {
	logger *slog.Logger
}

// New creates an extractor.
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{logger: logger}
}

// ExtractFile reads all tables from one source file, dispatching on the
// file extension. Unsupported extensions and unreadable files are input
// errors: fatal for the file, propagated to the host.
func (e *Extractor) ExtractFile(path string) ([]core.NormalizedTable, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return e.extractCSV(path)
	case ".xlsx":
		return e.extractXLSX(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// buildTable assembles a normalized table from raw rows. The first raw
// row is the header; data rows are padded to the header width.
func buildTable(sourceFile, sheetName string, tableIndex int, raw [][]string) (core.NormalizedTable, bool) {
	if len(raw) == 0 {
		return core.NormalizedTable{}, false
	}

	header := raw[0]
	rows := make([]core.Row, 0, len(raw)-1)
	for _, r := range raw[1:] {
		row := make(core.Row, len(header))
		copy(row, r)
		rows = append(rows, row)
	}

	return core.NormalizedTable{
		SourceFile: sourceFile,
		SheetName:  sheetName,
		TableIndex: tableIndex,
		Header:     header,
		Rows:       rows,
	}, true
}
