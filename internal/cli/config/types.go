// Package config loads CLI configuration with koanf, layering defaults,
// a tabmap.yaml file, TABMAP_ environment variables and flags.
package config

// Defaults for paths resolved against the project root.
const (
	DefaultPluginDir    = "config"
	DefaultManifestFile = "manifest.yaml"
	DefaultOutputDir    = "out"
	DefaultColor        = "auto"
	DefaultLevel        = "info"
)

// TelemetryConfig configures the run's telemetry sinks.
type TelemetryConfig struct {
	// File is the NDJSON event log destination; empty disables it.
	File string `koanf:"file"`
	// FileLevel is the minimum severity written to the file sink.
	FileLevel string `koanf:"file_level"`
	// ConsoleLevel is the minimum severity echoed to the console sink.
	ConsoleLevel string `koanf:"console_level"`
}

// Config is the resolved CLI configuration.
type Config struct {
	// ProjectRoot anchors relative path resolution and is the run root.
	ProjectRoot string `koanf:"-"`

	PluginDir    string `koanf:"plugin_dir"`
	ManifestPath string `koanf:"manifest"`
	OutputDir    string `koanf:"output_dir"`

	// Metadata is attached to the run context verbatim.
	Metadata map[string]string `koanf:"metadata"`

	Telemetry TelemetryConfig `koanf:"telemetry"`

	// Color is auto, always or never.
	Color   string `koanf:"color"`
	Verbose bool   `koanf:"verbose"`
}
