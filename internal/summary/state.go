package summary

import (
	"sort"

	"github.com/tabmap-io/tabmap/pkg/core"
)

// fieldState is the mutable per-field rollup inside one scope.
type fieldState struct {
	label       string
	required    bool
	mapped      bool
	maxScore    float64
	satisfiedIn map[string]struct{}
}

// headerState is the mutable per-distinct-header rollup inside one scope.
type headerState struct {
	occurrences int
	mapped      bool
	fields      map[string]struct{}
}

// validationState is the mutable validation rollup inside one scope.
type validationState struct {
	total       int
	bySeverity  map[string]int
	byCode      map[string]int
	byField     map[string]int
	maxSeverity core.Severity
}

// scopeState is the incrementally merged accumulator for one scope
// (run, file or sheet). Table-level aggregates are built directly into
// an immutable TableSummary and never stored as scope state.
type scopeState struct {
	tables      int
	rows        core.RowCounts
	columns     core.ColumnCounts
	fields      map[string]*fieldState
	fieldOrder  []string
	headers     map[string]*headerState
	headerOrder []string
	validation  validationState
}

func newScopeState() *scopeState {
	return &scopeState{
		fields:  make(map[string]*fieldState),
		headers: make(map[string]*headerState),
		validation: validationState{
			bySeverity: make(map[string]int),
			byCode:     make(map[string]int),
			byField:    make(map[string]int),
		},
	}
}

// fieldEntry returns the state for a field, creating it on first sight.
func (s *scopeState) fieldEntry(name, label string, required bool) *fieldState {
	if fs, ok := s.fields[name]; ok {
		return fs
	}
	fs := &fieldState{label: label, required: required, satisfiedIn: make(map[string]struct{})}
	s.fields[name] = fs
	s.fieldOrder = append(s.fieldOrder, name)
	return fs
}

// headerEntry returns the state for a normalized header, creating it on
// first sight.
func (s *scopeState) headerEntry(normalized string) *headerState {
	if hs, ok := s.headers[normalized]; ok {
		return hs
	}
	hs := &headerState{fields: make(map[string]struct{})}
	s.headers[normalized] = hs
	s.headerOrder = append(s.headerOrder, normalized)
	return hs
}

// merge folds one immutable table summary into the scope: rolling
// counters add, field and header aggregates union-merge, validation
// aggregates add element-wise.
func (s *scopeState) merge(ts core.TableSummary) {
	s.tables++
	s.rows.Total += ts.Counts.Rows.Total
	s.rows.Empty += ts.Counts.Rows.Empty
	s.columns.Total += ts.Counts.Columns.Total
	s.columns.Empty += ts.Counts.Columns.Empty

	for _, fa := range ts.Fields {
		fs := s.fieldEntry(fa.Name, fa.Label, fa.Required)
		if fa.Mapped {
			fs.mapped = true
		}
		if fa.MaxScore > fs.maxScore {
			fs.maxScore = fa.MaxScore
		}
		for _, id := range fa.SatisfiedIn {
			fs.satisfiedIn[id] = struct{}{}
		}
	}

	for _, ha := range ts.Headers {
		hs := s.headerEntry(ha.Header)
		hs.occurrences += ha.Occurrences
		if ha.Mapped {
			hs.mapped = true
		}
		for _, f := range ha.Fields {
			hs.fields[f] = struct{}{}
		}
	}

	v := ts.Validation
	s.validation.total += v.Total
	for k, n := range v.BySeverity {
		s.validation.bySeverity[k] += n
	}
	for k, n := range v.ByCode {
		s.validation.byCode[k] += n
	}
	for k, n := range v.ByField {
		s.validation.byField[k] += n
	}
	s.validation.maxSeverity = core.MaxSeverity(s.validation.maxSeverity, v.MaxSeverity)
}

// counts derives the count tuple for the scope.
func (s *scopeState) countsSnapshot() core.Counts {
	c := core.Counts{Rows: s.rows, Columns: s.columns}
	c.Fields.Total = len(s.fields)
	for _, name := range s.fieldOrder {
		fs := s.fields[name]
		if fs.required {
			c.Fields.Required++
		}
		if fs.mapped {
			c.Fields.Mapped++
		}
	}
	c.Fields.Unmapped = c.Fields.Total - c.Fields.Mapped
	return c
}

// fieldsSnapshot derives the immutable field aggregates for the scope.
func (s *scopeState) fieldsSnapshot() []core.FieldAggregate {
	out := make([]core.FieldAggregate, 0, len(s.fieldOrder))
	for _, name := range s.fieldOrder {
		fs := s.fields[name]
		agg := core.FieldAggregate{
			Name:     name,
			Label:    fs.label,
			Required: fs.required,
			Mapped:   fs.mapped,
			MaxScore: fs.maxScore,
		}
		for id := range fs.satisfiedIn {
			agg.SatisfiedIn = append(agg.SatisfiedIn, id)
		}
		sort.Strings(agg.SatisfiedIn)
		out = append(out, agg)
	}
	return out
}

// headersSnapshot derives the immutable header aggregates for the scope.
func (s *scopeState) headersSnapshot() []core.HeaderAggregate {
	out := make([]core.HeaderAggregate, 0, len(s.headerOrder))
	for _, h := range s.headerOrder {
		hs := s.headers[h]
		agg := core.HeaderAggregate{
			Header:      h,
			Occurrences: hs.occurrences,
			Mapped:      hs.mapped,
		}
		for f := range hs.fields {
			agg.Fields = append(agg.Fields, f)
		}
		sort.Strings(agg.Fields)
		out = append(out, agg)
	}
	return out
}

// validationSnapshot derives the immutable validation aggregate.
func (s *scopeState) validationSnapshot() core.ValidationAggregate {
	return core.ValidationAggregate{
		Total:       s.validation.total,
		BySeverity:  copyCounts(s.validation.bySeverity),
		ByCode:      copyCounts(s.validation.byCode),
		ByField:     copyCounts(s.validation.byField),
		MaxSeverity: s.validation.maxSeverity,
	}
}

func copyCounts(m map[string]int) map[string]int {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
