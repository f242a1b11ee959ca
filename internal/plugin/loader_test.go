package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writePackage creates a config package on disk from a map of relative
// file paths to contents.
func writePackage(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

const minimalDetector = `
def register(registry):
    registry.register_column_detector(name="header_match", fn=_detect)

def _detect(column):
    return None
`

func TestResolvePackage(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) (dir, wantBase string)
		wantErr error
	}{
		{
			name: "directory is itself a package",
			setup: func(t *testing.T) (string, string) {
				dir := t.TempDir()
				writePackage(t, dir, map[string]string{"columns/a.star": minimalDetector})
				return dir, filepath.Base(dir)
			},
		},
		{
			name: "src layout prefers canonical package",
			setup: func(t *testing.T) (string, string) {
				dir := t.TempDir()
				writePackage(t, dir, map[string]string{
					"src/aardvark/columns/a.star": minimalDetector,
					"src/config/columns/a.star":   minimalDetector,
				})
				return dir, "config"
			},
		},
		{
			name: "src layout falls back to first candidate",
			setup: func(t *testing.T) (string, string) {
				dir := t.TempDir()
				writePackage(t, dir, map[string]string{
					"src/zebra/columns/a.star":    minimalDetector,
					"src/aardvark/hooks/h.star":   minimalDetector,
					"src/aardvark/columns/a.star": minimalDetector,
				})
				return dir, "aardvark"
			},
		},
		{
			name: "flat layout with config subdirectory",
			setup: func(t *testing.T) (string, string) {
				dir := t.TempDir()
				writePackage(t, dir, map[string]string{
					"config/row_detectors/r.star": minimalDetector,
					"README.md":                   "docs",
				})
				return dir, "config"
			},
		},
		{
			name: "no package found",
			setup: func(t *testing.T) (string, string) {
				dir := t.TempDir()
				writePackage(t, dir, map[string]string{"notes.txt": "nothing here"})
				return dir, ""
			},
			wantErr: ErrPackageNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, wantBase := tt.setup(t)
			got, err := ResolvePackage(dir)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, wantBase, filepath.Base(got))
		})
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, map[string]string{
		"columns/email.star":            minimalDetector,
		"columns/amount.star":           minimalDetector,
		"columns/_draft.star":           minimalDetector,
		"columns/helpers.star":          "def normalize(s):\n    return s\n",
		"columns/tests/email_test.star": minimalDetector,
		"row_detectors/required.star":   minimalDetector,
		"hooks/audit.star":              minimalDetector,
	})

	modules, err := Discover(dir)
	require.NoError(t, err)

	pkg := filepath.Base(dir)
	var paths []string
	for _, m := range modules {
		paths = append(paths, m.Path)
	}
	assert.Equal(t, []string{
		pkg + ".columns.amount",
		pkg + ".columns.email",
		pkg + ".hooks.audit",
		pkg + ".row_detectors.required",
	}, paths)
}

func TestDiscoverRejectsUnparsableFile(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, map[string]string{
		"columns/bad.star": "def register(:\n",
	})

	_, err := Discover(dir)
	require.Error(t, err)
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestLoadPopulatesRegistry(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, map[string]string{
		"columns/email.star": `
def register(registry):
    registry.register_column_detector(
        name="email_header",
        fn=_detect,
        options={"threshold": 0.5, "fields": ["email"]},
    )

def _detect(column):
    return None
`,
		"row_detectors/required.star": `
def register(registry):
    registry.register_row_detector(name="required_fields", fn=_check)

def _check(row):
    return None
`,
		"hooks/audit.star": `
def register(registry):
    registry.register_hook(event="run_start", fn=_on_start)
    registry.register_hook(event="run_complete", fn=_on_complete)

def _on_start(ctx):
    pass

def _on_complete(ctx):
    pass
`,
	})

	reg, modules, err := NewLoader().Load(dir)
	require.NoError(t, err)
	assert.Len(t, modules, 3)

	detectors := reg.ColumnDetectors()
	require.Len(t, detectors, 1)
	assert.Equal(t, "email_header", detectors[0].Name)
	assert.InDelta(t, 0.5, detectors[0].Options.Threshold, 1e-9)
	assert.Equal(t, []string{"email"}, detectors[0].Options.Fields)

	assert.Len(t, reg.RowDetectors(), 1)
	assert.Len(t, reg.Hooks("run_start"), 1)
	assert.Len(t, reg.Hooks("run_complete"), 1)
	assert.Empty(t, reg.Hooks("table"))
}

func TestLoadFailsWhenRegisterNotCallable(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, map[string]string{
		"columns/shadowed.star": `
def register(registry):
    pass

register = "not callable anymore"
`,
	})

	_, _, err := NewLoader().Load(dir)
	require.Error(t, err)
	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Contains(t, lerr.Message, "not callable")
}

func TestLoadFailsWithNoModules(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, map[string]string{
		"columns/helpers.star": "def normalize(s):\n    return s\n",
	})

	_, _, err := NewLoader().Load(dir)
	assert.ErrorIs(t, err, ErrNoModules)
}

func TestLoadIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, map[string]string{
		"columns/zulu.star":           minimalDetector,
		"columns/alpha.star":          minimalDetector,
		"columns/mike.star":           minimalDetector,
		"row_detectors/bravo.star":    minimalDetector,
		"hooks/kilo.star":             minimalDetector,
		"columns/nested/deeper.star":  minimalDetector,
		"columns/nested/_hidden.star": minimalDetector,
	})

	first, _, err := NewLoader().Load(dir)
	require.NoError(t, err)
	second, _, err := NewLoader().Load(dir)
	require.NoError(t, err)

	assert.Equal(t, first.ModuleNames(), second.ModuleNames())
	assert.Len(t, first.ModuleNames(), 6)
}

func TestLoadForwardsPrint(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, map[string]string{
		"hooks/noisy.star": `
print("loading noisy hook")

def register(registry):
    registry.register_hook(event="table", fn=_on_table)

def _on_table(ctx):
    pass
`,
	})

	var lines []string
	loader := NewLoader(WithPrint(func(module, line string) {
		lines = append(lines, module+": "+line)
	}))
	_, _, err := loader.Load(dir)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "hooks.noisy: loading noisy hook")
}

func TestValidatePackage(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, map[string]string{
		"columns/good.star":    minimalDetector,
		"columns/helpers.star": "def normalize(s):\n    return s\n",
		"columns/broken.star":  "def register(:\n",
	})

	reports, err := ValidatePackage(dir)
	require.NoError(t, err)
	require.Len(t, reports, 3)

	byName := map[string]ModuleReport{}
	for _, r := range reports {
		byName[filepath.Base(r.File)] = r
	}
	assert.True(t, byName["good.star"].Registrable)
	assert.False(t, byName["helpers.star"].Registrable)
	assert.NotEmpty(t, byName["broken.star"].Err)
}
