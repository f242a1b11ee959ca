package extract

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tabmap-io/tabmap/pkg/core"
)

// utf8BOM is stripped from the start of CSV files written by
// spreadsheet exporters.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// extractCSV reads a CSV file as a single table. The sheet name is the
// file's base name without extension, so CSV sources aggregate like a
// one-sheet workbook.
func (e *Extractor) extractCSV(path string) ([]core.NormalizedTable, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is a host-supplied source file
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if head, err := br.Peek(len(utf8BOM)); err == nil && string(head) == string(utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1 // rows are padded to header width later

	var raw [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		raw = append(raw, record)
	}

	base := filepath.Base(path)
	sheet := strings.TrimSuffix(base, filepath.Ext(base))

	table, ok := buildTable(path, sheet, 0, raw)
	if !ok {
		e.logger.Debug("skipping empty csv file", "path", path)
		return nil, nil
	}
	e.logger.Debug("extracted csv table", "path", path, "rows", len(table.Rows), "columns", len(table.Header))
	return []core.NormalizedTable{table}, nil
}
