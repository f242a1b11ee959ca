package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "tabmap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("plugins", "", "")
	fs.String("manifest", "", "")
	fs.String("output-dir", "", "")
	fs.String("color", "", "")
	fs.Bool("verbose", false, "")
	return fs
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(dir, DefaultPluginDir), cfg.PluginDir)
	assert.Equal(t, filepath.Join(dir, DefaultManifestFile), cfg.ManifestPath)
	assert.Equal(t, filepath.Join(dir, DefaultOutputDir), cfg.OutputDir)
	assert.Equal(t, "auto", cfg.Color)
	assert.Equal(t, "info", cfg.Telemetry.FileLevel)
	assert.False(t, cfg.Verbose)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
plugin_dir: plugins/acme
manifest: schemas/orders.yaml
output_dir: artifacts
color: never
metadata:
  workspace: acme
telemetry:
  file: events.ndjson
  file_level: debug
  console_level: warning
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "plugins", "acme"), cfg.PluginDir)
	assert.Equal(t, filepath.Join(dir, "schemas", "orders.yaml"), cfg.ManifestPath)
	assert.Equal(t, filepath.Join(dir, "artifacts"), cfg.OutputDir)
	assert.Equal(t, "never", cfg.Color)
	assert.Equal(t, "acme", cfg.Metadata["workspace"])
	// Telemetry file resolves against the output dir.
	assert.Equal(t, filepath.Join(dir, "artifacts", "events.ndjson"), cfg.Telemetry.File)
	assert.Equal(t, "debug", cfg.Telemetry.FileLevel)
	assert.Equal(t, "warning", cfg.Telemetry.ConsoleLevel)
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "plugin_dir: from_file\ncolor: never\n")

	fs := newFlags()
	require.NoError(t, fs.Parse([]string{"--plugins", "/abs/plugins", "--verbose"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, "/abs/plugins", cfg.PluginDir)
	assert.Equal(t, "never", cfg.Color)
	assert.True(t, cfg.Verbose)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "output_dir: from_file\n")
	t.Setenv("TABMAP_OUTPUT_DIR", "from_env")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "from_env"), cfg.OutputDir)
}

func TestLoadRejectsBadColorMode(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "color: rainbow\n")

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "color")
}

func TestLoadMissingExplicitConfig(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
}

func TestFindProjectRootUpward(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	assert.Equal(t, root, findProjectRoot(nested))
}
