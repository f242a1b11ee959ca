package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tabmap-io/tabmap/pkg/core"
)

func TestColorNeverDisablesStyles(t *testing.T) {
	var out, errW bytes.Buffer
	r := NewRenderer(&out, &errW, "never")

	r.Successf("done in %s", "2s")
	r.Errorf("failed: %s", "boom")

	assert.Equal(t, "done in 2s\n", out.String())
	assert.Equal(t, "failed: boom\n", errW.String())
}

func TestColorAutoOffForNonTerminal(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, &out, "auto")
	assert.False(t, r.color)
}

func TestRunSummaryTable(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, &out, "never")

	r.RunSummary(core.RunSummary{
		Files:  1,
		Sheets: 2,
		Tables: 3,
		Counts: core.Counts{
			Rows:    core.RowCounts{Total: 40, Empty: 2},
			Columns: core.ColumnCounts{Total: 10, Empty: 1},
			Fields:  core.FieldCounts{Total: 4, Mapped: 3, Unmapped: 1},
		},
		Validation: core.ValidationAggregate{
			Total:       5,
			BySeverity:  map[string]int{"error": 2, "warning": 3},
			MaxSeverity: core.SeverityError,
		},
		Fields: []core.FieldAggregate{
			{Name: "email", Required: true, Mapped: true, MaxScore: 0.92},
			{Name: "phone"},
		},
	})

	text := out.String()
	for _, want := range []string{
		"Files", "Sheets", "Tables",
		"3 mapped, 1 unmapped",
		"2 error, 3 warning",
		"email", "0.92", "phone",
	} {
		assert.True(t, strings.Contains(text, want), "missing %q in:\n%s", want, text)
	}
}

func TestValidationDetailEmpty(t *testing.T) {
	assert.Equal(t, "", validationDetail(core.ValidationAggregate{}))
}
