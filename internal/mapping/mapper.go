// Package mapping implements the score-based column mapper. Scoring
// heuristics live in plugin detectors; the mapper only accumulates
// contributions, applies the detectors' satisfaction decisions, and
// resolves the winning column per schema field.
package mapping

import (
	"fmt"
	"log/slog"
	"strings"

	"go.starlark.net/starlark"

	"github.com/tabmap-io/tabmap/internal/plugin"
	"github.com/tabmap-io/tabmap/internal/registry"
	"github.com/tabmap-io/tabmap/pkg/core"
)

// defaultSampleSize is how many non-empty cell values are offered to
// detectors per column.
const defaultSampleSize = 10

// Mapper solicits score contributions from registered column detectors
// and decides which schema field, if any, each physical column satisfies.
type Mapper struct {
	registry   *registry.Registry
	logger     *slog.Logger
	sampleSize int
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mapper) { m.logger = logger }
}

// WithSampleSize overrides how many cell samples detectors see.
func WithSampleSize(n int) Option {
	return func(m *Mapper) {
		if n > 0 {
			m.sampleSize = n
		}
	}
}

// New creates a mapper over a populated registry.
func New(reg *registry.Registry, opts ...Option) *Mapper {
	m := &Mapper{
		registry:   reg,
		logger:     slog.New(slog.DiscardHandler),
		sampleSize: defaultSampleSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// candidate accumulates one column's scoring against one field.
type candidate struct {
	field         string
	score         float64
	contributions []core.ScoreContribution
	satisfied     bool
}

// MapColumns maps every physical column of a table onto the field
// catalog. Fields named by detectors but absent from the catalog are
// added with defaulted label and required flag.
func (m *Mapper) MapColumns(header []string, rows []core.Row, catalog *core.FieldCatalog) (core.MappedColumnSet, error) {
	detectors := m.registry.ColumnDetectors()
	thread := &starlark.Thread{Name: "map-columns"}

	set := core.MappedColumnSet{WinnerByField: make(map[string]int)}

	// Per column: candidates in first-contribution order.
	perColumn := make([][]*candidate, len(header))

	for idx, head := range header {
		samples := columnSamples(rows, idx, m.sampleSize)
		colValue := plugin.ColumnValue(head, idx, samples, catalog.Fields())

		byField := make(map[string]*candidate)
		var order []*candidate

		for _, det := range detectors {
			results, err := m.invoke(thread, det, colValue)
			if err != nil {
				return core.MappedColumnSet{}, err
			}
			for _, res := range results {
				if !det.Options.Allows(res.field) {
					continue
				}
				catalog.Ensure(res.field, "", false)
				cand, ok := byField[res.field]
				if !ok {
					cand = &candidate{field: res.field}
					byField[res.field] = cand
					order = append(order, cand)
				}
				cand.score += res.delta
				cand.contributions = append(cand.contributions, core.ScoreContribution{
					Detector: det.Name,
					Delta:    res.delta,
				})
				if res.satisfied {
					cand.satisfied = true
				}
			}
		}
		perColumn[idx] = order
	}

	// Every candidate is recorded as a mapped column so the artifact
	// keeps the full audit trail, winners and alternates alike.
	for idx, head := range header {
		if len(perColumn[idx]) == 0 {
			set.Unmapped = append(set.Unmapped, core.UnmappedColumn{
				Header:       head,
				Index:        idx,
				OutputHeader: outputHeader(head, idx),
			})
			continue
		}
		for _, cand := range perColumn[idx] {
			set.Mapped = append(set.Mapped, core.MappedColumn{
				Header:        head,
				Index:         idx,
				Field:         cand.field,
				Score:         cand.score,
				Contributions: cand.contributions,
				Satisfied:     cand.satisfied,
			})
		}
	}

	// Highest-scoring satisfied column wins each field; ties break to
	// the first-seen (lowest index) column.
	for _, mc := range set.Mapped {
		if !mc.Satisfied {
			continue
		}
		winIdx, claimed := set.WinnerByField[mc.Field]
		if !claimed {
			set.WinnerByField[mc.Field] = mc.Index
			continue
		}
		if win, ok := findCandidate(set.Mapped, winIdx, mc.Field); ok && mc.Score > win.Score {
			set.WinnerByField[mc.Field] = mc.Index
		}
	}

	m.logger.Debug("columns mapped",
		"columns", len(header),
		"mapped", len(set.Mapped),
		"unmapped", len(set.Unmapped),
		"fields_won", len(set.WinnerByField))

	return set, nil
}

// detection is one parsed detector result.
type detection struct {
	field     string
	delta     float64
	satisfied bool
}

// invoke calls one detector for one column and parses its result: None,
// a single dict, or a list of dicts {"field", "delta", "satisfied"?}.
func (m *Mapper) invoke(thread *starlark.Thread, det registry.ColumnDetector, colValue starlark.Value) ([]detection, error) {
	out, err := starlark.Call(thread, det.Fn, starlark.Tuple{colValue}, nil)
	if err != nil {
		return nil, fmt.Errorf("column detector %q: %w", det.Name, err)
	}

	switch v := out.(type) {
	case starlark.NoneType:
		return nil, nil
	case *starlark.Dict:
		d, err := parseDetection(det.Name, v)
		if err != nil {
			return nil, err
		}
		return []detection{d}, nil
	case *starlark.List:
		var results []detection
		for i := 0; i < v.Len(); i++ {
			dict, ok := v.Index(i).(*starlark.Dict)
			if !ok {
				return nil, fmt.Errorf("column detector %q: result %d is not a dict", det.Name, i)
			}
			d, err := parseDetection(det.Name, dict)
			if err != nil {
				return nil, err
			}
			results = append(results, d)
		}
		return results, nil
	default:
		return nil, fmt.Errorf("column detector %q: unexpected result type %s", det.Name, out.Type())
	}
}

// parseDetection reads one detector result dict.
func parseDetection(detector string, dict *starlark.Dict) (detection, error) {
	raw, err := plugin.StarlarkToGo(dict)
	if err != nil {
		return detection{}, fmt.Errorf("column detector %q: %w", detector, err)
	}
	m, _ := raw.(map[string]any)

	field, _ := m["field"].(string)
	if field == "" {
		return detection{}, fmt.Errorf("column detector %q: result missing field", detector)
	}

	d := detection{field: field}
	switch delta := m["delta"].(type) {
	case float64:
		d.delta = delta
	case int64:
		d.delta = float64(delta)
	case nil:
	default:
		return detection{}, fmt.Errorf("column detector %q: delta must be a number", detector)
	}
	if sat, ok := m["satisfied"].(bool); ok {
		d.satisfied = sat
	}
	return d, nil
}

// columnSamples returns up to limit non-empty values from one column.
func columnSamples(rows []core.Row, idx, limit int) []string {
	var samples []string
	for _, row := range rows {
		if idx >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[idx]); v != "" {
			samples = append(samples, v)
			if len(samples) == limit {
				break
			}
		}
	}
	return samples
}

// outputHeader is the fallback export label for an unmapped column.
func outputHeader(header string, idx int) string {
	if h := strings.TrimSpace(header); h != "" {
		return h
	}
	return fmt.Sprintf("column_%d", idx+1)
}

// findCandidate locates a mapped column by index and field.
func findCandidate(mapped []core.MappedColumn, idx int, field string) (core.MappedColumn, bool) {
	for _, mc := range mapped {
		if mc.Index == idx && mc.Field == field {
			return mc, true
		}
	}
	return core.MappedColumn{}, false
}
