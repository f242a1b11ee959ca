package extract

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/tabmap-io/tabmap/pkg/core"
)

// extractXLSX reads every non-empty sheet of a workbook as one table.
func (e *Extractor) extractXLSX(path string) ([]core.NormalizedTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer f.Close()

	var tables []core.NormalizedTable
	for _, sheetName := range f.GetSheetList() {
		raw, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
		}

		table, ok := buildTable(path, sheetName, 0, raw)
		if !ok {
			e.logger.Debug("skipping empty sheet", "path", path, "sheet", sheetName)
			continue
		}
		e.logger.Debug("extracted xlsx table",
			"path", path, "sheet", sheetName, "rows", len(table.Rows), "columns", len(table.Header))
		tables = append(tables, table)
	}
	return tables, nil
}
