package telemetry

import (
	"path/filepath"
	"strings"
)

// pathKeys are payload keys whose values are rewritten relative to the
// run root when derivable.
var pathKeys = map[string]struct{}{
	"file_path":       {},
	"output_path":     {},
	"output_paths":    {},
	"processed_file":  {},
	"processed_files": {},
	"source_file":     {},
}

// NormalizePayload recursively drops null-valued keys and empty nested
// containers, and relativizes known path-bearing keys against the run
// root. The input map is not mutated.
func NormalizePayload(payload map[string]any, runRoot string) map[string]any {
	v := normalizeValue(payload, runRoot, false)
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m
}

func normalizeValue(v any, runRoot string, isPath bool) any {
	switch val := v.(type) {
	case nil:
		return nil

	case string:
		if isPath {
			return relativize(val, runRoot)
		}
		return val

	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			_, pathKey := pathKeys[k]
			norm := normalizeValue(item, runRoot, pathKey)
			if norm == nil {
				continue
			}
			out[k] = norm
		}
		if len(out) == 0 {
			return nil
		}
		return out

	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			norm := normalizeValue(item, runRoot, isPath)
			if norm == nil {
				continue
			}
			out = append(out, norm)
		}
		if len(out) == 0 {
			return nil
		}
		return out

	case []string:
		if len(val) == 0 {
			return nil
		}
		out := make([]any, 0, len(val))
		for _, s := range val {
			if isPath {
				s = relativize(s, runRoot)
			}
			out = append(out, s)
		}
		return out

	default:
		return val
	}
}

// relativize rewrites a path relative to the run root if the path sits
// underneath it; otherwise the path is returned unchanged.
func relativize(path, runRoot string) string {
	if runRoot == "" || path == "" {
		return path
	}
	rel, err := filepath.Rel(runRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
