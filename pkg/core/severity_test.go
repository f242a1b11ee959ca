package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityRanking(t *testing.T) {
	tests := []struct {
		name string
		a, b Severity
		want Severity
	}{
		{"error beats warning", SeverityWarning, SeverityError, SeverityError},
		{"critical beats error", SeverityCritical, SeverityError, SeverityCritical},
		{"info vs success tie keeps first", SeverityInfo, SeveritySuccess, SeverityInfo},
		{"unranked loses to ranked", Severity("weird"), SeverityInfo, SeverityInfo},
		{"ranked keeps against unranked", SeverityError, Severity("weird"), SeverityError},
		{"both unranked keeps first", Severity("odd"), Severity("weird"), Severity("odd")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaxSeverity(tt.a, tt.b))
		})
	}
}

func TestSeverityMaxAcrossSequence(t *testing.T) {
	// info, error, warning -> error
	max := SeverityInfo
	for _, s := range []Severity{SeverityError, SeverityWarning} {
		max = MaxSeverity(max, s)
	}
	assert.Equal(t, SeverityError, max)
}

func TestSeverityAtLeast(t *testing.T) {
	assert.True(t, SeverityError.AtLeast(SeverityWarning))
	assert.True(t, SeverityWarning.AtLeast(SeverityWarning))
	assert.False(t, SeverityInfo.AtLeast(SeverityWarning))
	assert.True(t, SeveritySuccess.AtLeast(SeverityInfo))
	assert.False(t, Severity("weird").AtLeast(SeverityDebug))
}

func TestParseSeverity(t *testing.T) {
	s, ok := ParseSeverity(" Warning ")
	assert.True(t, ok)
	assert.Equal(t, SeverityWarning, s)

	s, ok = ParseSeverity("nope")
	assert.False(t, ok)
	assert.Equal(t, SeverityInfo, s)
}

func TestFieldCatalogEnsure(t *testing.T) {
	m := &Manifest{
		SchemaID: "s1",
		Fields: []FieldSpec{
			{Name: "email", Label: "Email", Required: true},
			{Name: "name", Label: "Name"},
		},
	}
	c := NewFieldCatalog(m)
	assert.Equal(t, 2, c.Len())

	// Later Ensure never mutates an existing entry.
	spec := c.Ensure("email", "Other", false)
	assert.Equal(t, "Email", spec.Label)
	assert.True(t, spec.Required)

	// New fields default the label to the name.
	spec = c.Ensure("phone", "", false)
	assert.Equal(t, "phone", spec.Label)
	assert.Equal(t, 3, c.Len())

	fields := c.Fields()
	assert.Equal(t, []string{"email", "name", "phone"}, []string{fields[0].Name, fields[1].Name, fields[2].Name})
}
