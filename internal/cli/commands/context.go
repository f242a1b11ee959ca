// Package commands implements the tabmap subcommands.
package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/tabmap-io/tabmap/internal/cli/config"
	"github.com/tabmap-io/tabmap/internal/cli/output"
)

type configKey struct{}
type rendererKey struct{}

// WithConfig stores the loaded config on a command context.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// WithRenderer stores the renderer on a command context.
func WithRenderer(ctx context.Context, r *output.Renderer) context.Context {
	return context.WithValue(ctx, rendererKey{}, r)
}

// getConfig retrieves the config placed on the context by the root
// command's PersistentPreRunE.
func getConfig(cmd *cobra.Command) *config.Config {
	if c, ok := cmd.Context().Value(configKey{}).(*config.Config); ok {
		return c
	}
	return &config.Config{
		ProjectRoot:  ".",
		PluginDir:    config.DefaultPluginDir,
		ManifestPath: config.DefaultManifestFile,
		OutputDir:    config.DefaultOutputDir,
		Color:        config.DefaultColor,
	}
}

// getRenderer retrieves the renderer from the context.
func getRenderer(cmd *cobra.Command) *output.Renderer {
	if r, ok := cmd.Context().Value(rendererKey{}).(*output.Renderer); ok {
		return r
	}
	return output.NewRenderer(os.Stdout, os.Stderr, config.DefaultColor)
}
