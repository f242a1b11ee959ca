package commands

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/tabmap-io/tabmap/internal/cli/output"
	"github.com/tabmap-io/tabmap/internal/plugin"
)

// debounceWindow coalesces bursts of filesystem events from editors
// that write via rename or touch files repeatedly.
const debounceWindow = 250 * time.Millisecond

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "validate [plugin-dir]",
		Short: "Statically validate a config package",
		Long: `Resolve a config package and statically inspect its modules without
executing any plugin code, reporting which define a register entry point.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := getConfig(cmd).PluginDir
			if len(args) == 1 {
				dir = args[0]
			}
			renderer := getRenderer(cmd)

			if err := validateOnce(renderer, dir); err != nil && !watch {
				return err
			}
			if !watch {
				return nil
			}
			return watchAndValidate(cmd, renderer, dir)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-validate on file changes")
	return cmd
}

// validateOnce runs one static validation pass and renders the report.
func validateOnce(renderer *output.Renderer, dir string) error {
	reports, err := plugin.ValidatePackage(dir)
	if err != nil {
		renderer.Errorf("validate: %v", err)
		return err
	}

	registrable := 0
	for _, rep := range reports {
		switch {
		case rep.Err != "":
			renderer.Errorf("  %-40s parse error: %s", rep.Path, rep.Err)
		case rep.Registrable:
			registrable++
			renderer.Infof("  %-40s ok", rep.Path)
		default:
			renderer.Dimf("  %-40s no register, skipped", rep.Path)
		}
	}

	if registrable == 0 {
		err := fmt.Errorf("no qualifying modules in %s", dir)
		renderer.Errorf("%v", err)
		return err
	}
	renderer.Successf("%d of %d modules register", registrable, len(reports))
	return nil
}

// watchAndValidate re-runs validation whenever the package tree
// changes, until the command context is canceled.
func watchAndValidate(cmd *cobra.Command, renderer *output.Renderer, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Close()

	if err := addRecursive(watcher, dir); err != nil {
		return err
	}
	renderer.Dimf("watching %s", dir)

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// New directories must be watched too.
			if event.Op.Has(fsnotify.Create) {
				_ = addRecursive(watcher, event.Name)
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceWindow, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			renderer.Errorf("watch: %v", err)
		case <-fire:
			renderer.Dimf("change detected, re-validating")
			// Errors are reported and watched through; watch mode only
			// exits on cancellation.
			_ = validateOnce(renderer, dir)
		}
	}
}

// addRecursive watches dir and every directory below it.
func addRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil //nolint:nilerr // files and unreadable entries are skipped, not fatal
		}
		return watcher.Add(path)
	})
}
