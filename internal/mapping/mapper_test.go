package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabmap-io/tabmap/internal/plugin"
	"github.com/tabmap-io/tabmap/internal/registry"
	"github.com/tabmap-io/tabmap/internal/testutil"
	"github.com/tabmap-io/tabmap/pkg/core"
)

// loadRegistry builds a registry from a throwaway config package with a
// single columns module.
func loadRegistry(t *testing.T, detectorSource string) *registry.Registry {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "columns", "detectors.star")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(detectorSource), 0o644))

	reg, _, err := plugin.NewLoader().Load(dir)
	require.NoError(t, err)
	return reg
}

const headerDetector = `
def register(registry):
    registry.register_column_detector(name="header_exact", fn=_exact)
    registry.register_column_detector(name="header_alias", fn=_alias)

_aliases = {"e-mail": "email", "mail": "email", "full name": "name"}

def _exact(column):
    h = column.header.strip().lower()
    if h in column.fields:
        return {"field": h, "delta": 0.9, "satisfied": True}
    return None

def _alias(column):
    h = column.header.strip().lower()
    if h in _aliases:
        return {"field": _aliases[h], "delta": 0.7, "satisfied": True}
    return None
`

func newCatalog(fields ...string) *core.FieldCatalog {
	m := &core.Manifest{SchemaID: "test"}
	for _, f := range fields {
		m.Fields = append(m.Fields, core.FieldSpec{Name: f, Required: f == "email"})
	}
	return core.NewFieldCatalog(m)
}

func TestMapColumnsBasic(t *testing.T) {
	reg := loadRegistry(t, headerDetector)
	mapper := New(reg, WithLogger(testutil.NewTestLogger(t)))

	catalog := newCatalog("email", "name")
	set, err := mapper.MapColumns(
		[]string{"Email", "Comment"},
		[]core.Row{{"a@x.com", "hi"}, {"b@y.com", ""}},
		catalog,
	)
	require.NoError(t, err)

	require.Len(t, set.Mapped, 1)
	mc := set.Mapped[0]
	assert.Equal(t, "email", mc.Field)
	assert.Equal(t, 0, mc.Index)
	assert.InDelta(t, 0.9, mc.Score, 1e-9)
	assert.True(t, mc.Satisfied)
	require.Len(t, mc.Contributions, 1)
	assert.Equal(t, "header_exact", mc.Contributions[0].Detector)

	require.Len(t, set.Unmapped, 1)
	assert.Equal(t, "Comment", set.Unmapped[0].Header)
	assert.Equal(t, "Comment", set.Unmapped[0].OutputHeader)

	assert.Equal(t, map[string]int{"email": 0}, set.WinnerByField)
}

func TestMapColumnsHighestScoreWins(t *testing.T) {
	reg := loadRegistry(t, headerDetector)
	mapper := New(reg)

	catalog := newCatalog("email")
	set, err := mapper.MapColumns(
		[]string{"e-mail", "Email"},
		[]core.Row{{"a@x.com", "b@y.com"}},
		catalog,
	)
	require.NoError(t, err)

	// Both columns are satisfied candidates for email; the exact header
	// scores higher and wins. The alias column stays in the audit trail.
	require.Len(t, set.Mapped, 2)
	assert.Equal(t, 1, set.WinnerByField["email"])

	win, ok := set.Winner("email")
	require.True(t, ok)
	assert.InDelta(t, 0.9, win.Score, 1e-9)
}

func TestMapColumnsTieBreaksFirstSeen(t *testing.T) {
	reg := loadRegistry(t, headerDetector)
	mapper := New(reg)

	set, err := mapper.MapColumns(
		[]string{"Email", "email"},
		nil,
		newCatalog("email"),
	)
	require.NoError(t, err)
	assert.Equal(t, 0, set.WinnerByField["email"])
}

func TestMapColumnsIntroducesNewField(t *testing.T) {
	reg := loadRegistry(t, `
def register(registry):
    registry.register_column_detector(name="discoverer", fn=_detect)

def _detect(column):
    if column.header == "Mystery":
        return {"field": "discovered_field", "delta": 1.0, "satisfied": True}
    return None
`)
	mapper := New(reg)

	catalog := newCatalog("email")
	_, err := mapper.MapColumns([]string{"Mystery"}, nil, catalog)
	require.NoError(t, err)

	spec, ok := catalog.Get("discovered_field")
	require.True(t, ok)
	assert.Equal(t, "discovered_field", spec.Label)
	assert.False(t, spec.Required)
}

func TestMapColumnsSampleScoring(t *testing.T) {
	reg := loadRegistry(t, `
def register(registry):
    registry.register_column_detector(name="value_shape", fn=_detect)

def _detect(column):
    hits = 0
    for s in column.samples:
        if "@" in s:
            hits += 1
    if len(column.samples) == 0:
        return None
    score = float(hits) / float(len(column.samples))
    return {"field": "email", "delta": score, "satisfied": score > 0.5}
`)
	mapper := New(reg)

	set, err := mapper.MapColumns(
		[]string{"A", "B"},
		[]core.Row{
			{"a@x.com", "plain"},
			{"b@y.com", "text"},
			{"not-an-email", "like@this"},
		},
		newCatalog("email"),
	)
	require.NoError(t, err)

	// Column A: 2/3 hits, satisfied. Column B: 1/3, unsatisfied but
	// still recorded as a mapped candidate.
	require.Len(t, set.Mapped, 2)
	assert.Equal(t, 0, set.WinnerByField["email"])
	assert.True(t, set.Mapped[0].Satisfied)
	assert.False(t, set.Mapped[1].Satisfied)
}

func TestMapColumnsBlankHeaderFallback(t *testing.T) {
	reg := loadRegistry(t, headerDetector)
	mapper := New(reg)

	set, err := mapper.MapColumns([]string{"  ", "Email"}, nil, newCatalog("email"))
	require.NoError(t, err)
	require.Len(t, set.Unmapped, 1)
	assert.Equal(t, "column_1", set.Unmapped[0].OutputHeader)
}

func TestMapColumnsDetectorErrorPropagates(t *testing.T) {
	reg := loadRegistry(t, `
def register(registry):
    registry.register_column_detector(name="crasher", fn=_detect)

def _detect(column):
    fail("detector blew up")
`)
	mapper := New(reg)

	_, err := mapper.MapColumns([]string{"Email"}, nil, newCatalog("email"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crasher")
}

func TestMapColumnsRespectsFieldRestriction(t *testing.T) {
	reg := loadRegistry(t, `
def register(registry):
    registry.register_column_detector(
        name="greedy",
        fn=_detect,
        options={"fields": ["email"]},
    )

def _detect(column):
    h = column.header.strip().lower()
    if h in column.fields:
        return {"field": h, "delta": 0.8, "satisfied": True}
    return None
`)
	mapper := New(reg)

	set, err := mapper.MapColumns([]string{"Email", "Name"}, nil, newCatalog("email", "name"))
	require.NoError(t, err)

	// The detector matched both headers, but it may only score email.
	require.Len(t, set.Mapped, 1)
	assert.Equal(t, "email", set.Mapped[0].Field)
	require.Len(t, set.Unmapped, 1)
	assert.Equal(t, "Name", set.Unmapped[0].Header)
	_, won := set.WinnerByField["name"]
	assert.False(t, won)
}
