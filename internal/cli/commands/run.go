package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tabmap-io/tabmap/internal/cli/config"
	"github.com/tabmap-io/tabmap/internal/engine"
	"github.com/tabmap-io/tabmap/internal/telemetry"
	"github.com/tabmap-io/tabmap/pkg/core"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Inputs     []string
	Artifact   string
	JSONOutput bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest source files through the config package",
		Long: `Extract tables from the given source files, map their columns
against the manifest using the config package's detectors, and write the
run artifact plus telemetry.`,
		Example: `  # Process two files with the project defaults
  tabmap run --input data/orders.csv --input data/contacts.xlsx

  # Emit the run summary as JSON for CI
  tabmap run --input data/orders.csv --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Inputs, "input", "i", nil, "Source file to process (repeatable)")
	cmd.Flags().StringVar(&opts.Artifact, "artifact", "", "Artifact destination (default: <output-dir>/artifact.json)")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "Print the run summary as JSON")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	cfg := getConfig(cmd)
	renderer := getRenderer(cmd)
	start := time.Now()

	sinks, closeSinks, err := buildSinks(cmd, cfg, opts.JSONOutput)
	if err != nil {
		return err
	}
	defer closeSinks()

	logger := slog.New(slog.DiscardHandler)
	if cfg.Verbose {
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	eng := engine.New(engine.Config{
		PluginDir:    cfg.PluginDir,
		ManifestPath: cfg.ManifestPath,
		Inputs:       opts.Inputs,
		RootDir:      cfg.ProjectRoot,
		OutputDir:    cfg.OutputDir,
		ArtifactPath: opts.Artifact,
		Metadata:     cfg.Metadata,
		Sinks:        sinks,
		Logger:       logger,
	})

	res, err := eng.Run(cmd.Context())
	if err != nil {
		if res != nil && res.Run.Tables > 0 {
			renderer.Warnf("partial summaries for %d tables survive in the artifact", res.Run.Tables)
		}
		return fmt.Errorf("run failed: %w", err)
	}

	if opts.JSONOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res.Run)
	}

	renderer.RunSummary(res.Run)
	renderer.Successf("Run %s completed in %s", res.Run.RunID, time.Since(start).Round(time.Millisecond))
	return nil
}

// buildSinks assembles the telemetry sinks from config: a console sink
// on stderr and, when configured, an NDJSON file sink.
func buildSinks(cmd *cobra.Command, cfg *config.Config, quiet bool) ([]telemetry.Sink, func(), error) {
	var sinks []telemetry.Sink

	if !quiet {
		level, _ := core.ParseSeverity(cfg.Telemetry.ConsoleLevel)
		color := cfg.Color == "always"
		if cfg.Color == "auto" {
			if f, ok := cmd.ErrOrStderr().(*os.File); ok {
				color = isTerminal(f)
			}
		}
		sinks = append(sinks, telemetry.NewConsoleSink(cmd.ErrOrStderr(), level, color))
	}

	var fileSink *telemetry.FileSink
	if cfg.Telemetry.File != "" {
		level, _ := core.ParseSeverity(cfg.Telemetry.FileLevel)
		if err := os.MkdirAll(filepath.Dir(cfg.Telemetry.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create telemetry directory: %w", err)
		}
		fs, err := telemetry.NewFileSink(cfg.Telemetry.File, level)
		if err != nil {
			return nil, nil, fmt.Errorf("open telemetry file: %w", err)
		}
		fileSink = fs
		sinks = append(sinks, fs)
	}

	return sinks, func() {
		if fileSink != nil {
			_ = fileSink.Close()
		}
	}, nil
}
