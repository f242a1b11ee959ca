package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// maxUpwardSearchLevels limits how far up the tree Load searches for a
// tabmap.yaml when no explicit config file is given.
const maxUpwardSearchLevels = 10

// configNames are the config file names probed in order.
var configNames = []string{"tabmap.yaml", "tabmap.yml"}

// envPrefix namespaces environment overrides, TABMAP_PLUGIN_DIR etc.
const envPrefix = "TABMAP_"

// findConfigIn returns the first config file present in dir, or "".
func findConfigIn(dir string) string {
	for _, name := range configNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findProjectRoot searches upward from startDir for a config file and
// returns its directory, or startDir when none is found.
func findProjectRoot(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if findConfigIn(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return startDir
}

// resolveRelativeTo resolves path against baseDir unless it is empty or
// already absolute.
func resolveRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// Load builds the configuration. Precedence, highest first: flags,
// TABMAP_ environment variables, the config file, defaults. Relative
// paths are resolved against the project root: the explicit config
// file's directory, or the nearest ancestor holding a tabmap.yaml.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	projectRoot, cfgFile, err := locate(cfgFile)
	if err != nil {
		return nil, err
	}

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"plugin_dir":              DefaultPluginDir,
		"manifest":                DefaultManifestFile,
		"output_dir":              DefaultOutputDir,
		"color":                   DefaultColor,
		"verbose":                 false,
		"telemetry.file_level":    DefaultLevel,
		"telemetry.console_level": DefaultLevel,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", cfgFile, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		// TABMAP_TELEMETRY_FILE_LEVEL -> telemetry.file_level is not
		// derivable mechanically, so only top-level keys map from env.
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			// --plugins is the ergonomic spelling of plugin_dir.
			if key == "plugins" {
				key = "plugin_dir"
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.ProjectRoot = projectRoot
	cfg.PluginDir = resolveRelativeTo(cfg.PluginDir, projectRoot)
	cfg.ManifestPath = resolveRelativeTo(cfg.ManifestPath, projectRoot)
	cfg.OutputDir = resolveRelativeTo(cfg.OutputDir, projectRoot)
	cfg.Telemetry.File = resolveRelativeTo(cfg.Telemetry.File, cfg.OutputDir)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// locate resolves the project root and the config file to load.
func locate(cfgFile string) (root, resolved string, err error) {
	if cfgFile != "" {
		abs, absErr := filepath.Abs(cfgFile)
		if absErr != nil {
			return "", "", fmt.Errorf("resolve config file: %w", absErr)
		}
		if _, statErr := os.Stat(abs); statErr != nil {
			return "", "", fmt.Errorf("config file: %w", statErr)
		}
		return filepath.Dir(abs), abs, nil
	}

	cwd, cwdErr := os.Getwd()
	if cwdErr != nil {
		return "", "", fmt.Errorf("working directory: %w", cwdErr)
	}
	root = findProjectRoot(cwd)
	return root, findConfigIn(root), nil
}

// validate rejects configurations no command can act on.
func validate(cfg *Config) error {
	switch cfg.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("invalid color mode %q, want auto, always or never", cfg.Color)
	}
	return nil
}
