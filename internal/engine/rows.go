package engine

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/tabmap-io/tabmap/internal/plugin"
	"github.com/tabmap-io/tabmap/pkg/core"
)

// checkRows runs every registered row detector over the table's rows.
// Issues come back as data and never abort the run; a detector raising
// an exception is a configuration error and does.
func (e *Engine) checkRows(r *run, t *core.NormalizedTable) ([]core.ValidationIssue, error) {
	detectors := r.registry.RowDetectors()
	if len(detectors) == 0 || len(t.Rows) == 0 {
		return nil, nil
	}

	var issues []core.ValidationIssue
	for _, det := range detectors {
		thread := &starlark.Thread{Name: "row_detector:" + det.Name}
		for rowIdx, row := range t.Rows {
			rowValue := plugin.RowValue(rowIdx, row, fieldValues(t, row))
			result, err := starlark.Call(thread, det.Fn, starlark.Tuple{rowValue}, nil)
			if err != nil {
				return nil, fmt.Errorf("row detector %q on row %d: %w", det.Name, rowIdx, err)
			}
			found, err := parseIssues(det.Name, rowIdx, result)
			if err != nil {
				return nil, err
			}
			issues = append(issues, found...)
		}
	}
	return issues, nil
}

// fieldValues projects a row onto the schema: field name to the cell in
// the field's winning column.
func fieldValues(t *core.NormalizedTable, row core.Row) map[string]string {
	values := make(map[string]string, len(t.Columns.WinnerByField))
	for field, idx := range t.Columns.WinnerByField {
		if idx >= 0 && idx < len(row) {
			values[field] = row[idx]
		}
	}
	return values
}

// parseIssues interprets a row detector's return value: None for no
// issues, a dict for one, or a list of dicts.
func parseIssues(detector string, rowIdx int, v starlark.Value) ([]core.ValidationIssue, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case *starlark.Dict:
		issue, err := parseIssue(detector, rowIdx, val)
		if err != nil {
			return nil, err
		}
		return []core.ValidationIssue{issue}, nil
	case *starlark.List:
		var out []core.ValidationIssue
		for i := 0; i < val.Len(); i++ {
			dict, ok := val.Index(i).(*starlark.Dict)
			if !ok {
				return nil, fmt.Errorf("row detector %q: list element %d is not a dict", detector, i)
			}
			issue, err := parseIssue(detector, rowIdx, dict)
			if err != nil {
				return nil, err
			}
			out = append(out, issue)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("row detector %q returned %s, want None, dict or list", detector, v.Type())
	}
}

// parseIssue decodes one issue dict. Code defaults to the detector
// name, severity to warning.
func parseIssue(detector string, rowIdx int, dict *starlark.Dict) (core.ValidationIssue, error) {
	raw, err := plugin.StarlarkToGo(dict)
	if err != nil {
		return core.ValidationIssue{}, fmt.Errorf("row detector %q: %w", detector, err)
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return core.ValidationIssue{}, fmt.Errorf("row detector %q: issue is not a dict", detector)
	}

	row := rowIdx
	issue := core.ValidationIssue{
		Row:      &row,
		Code:     detector,
		Severity: core.SeverityWarning,
	}
	if s, ok := m["field"].(string); ok {
		issue.Field = s
	}
	if s, ok := m["code"].(string); ok && s != "" {
		issue.Code = s
	}
	if s, ok := m["severity"].(string); ok && s != "" {
		issue.Severity = core.Severity(s)
	}
	if s, ok := m["message"].(string); ok {
		issue.Message = s
	}
	if d, ok := m["details"].(map[string]any); ok {
		issue.Details = d
	}
	return issue, nil
}
