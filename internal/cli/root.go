// Package cli wires the tabmap command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tabmap-io/tabmap/internal/cli/commands"
	"github.com/tabmap-io/tabmap/internal/cli/config"
	"github.com/tabmap-io/tabmap/internal/cli/output"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "tabmap",
		Short: "tabmap - schema-driven tabular ingestion",
		Long: `tabmap extracts tables from CSV and XLSX sources and maps their
columns onto a schema manifest using detector plugins written in
Starlark, producing hierarchical summaries, telemetry and a durable
run artifact.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			ctx := commands.WithConfig(cmd.Context(), cfg)
			renderer := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.Color)
			ctx = commands.WithRenderer(ctx, renderer)
			cmd.SetContext(ctx)
			return nil
		},
	}

	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./tabmap.yaml)")
	rootCmd.PersistentFlags().String("plugins", "", "Path to the config package")
	rootCmd.PersistentFlags().String("manifest", "", "Path to the schema manifest")
	rootCmd.PersistentFlags().String("output-dir", "", "Directory for run outputs")
	rootCmd.PersistentFlags().String("color", "", "Color output (auto|always|never)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	_ = rootCmd.RegisterFlagCompletionFunc("color", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "always", "never"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(Version))

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
