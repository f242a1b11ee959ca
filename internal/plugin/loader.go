// Package plugin resolves config packages on disk, discovers detector
// modules by static inspection, and executes their register entry
// points against a fresh detector registry.
//
// Config packages are Starlark packages: a directory holding up to
// three subpackages (columns/, row_detectors/, hooks/) whose modules
// expose a top-level register(registry) function. Every Load builds a
// new registry and new interpreter threads, so repeated loads of the
// same package name cannot leak state across runs.
package plugin

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/tabmap-io/tabmap/internal/registry"
)

// ConfigPackageName is the canonical name of a config package. The
// src/ and flat layouts resolve by looking for a package with this name.
const ConfigPackageName = "config"

// detectorDirs are the fixed subdirectories scanned for modules, in
// scan order. Final module ordering is lexicographic on the dotted
// module path, independent of this order.
var detectorDirs = []string{"columns", "hooks", "row_detectors"}

// registerFunc is the entry point every qualifying module must define.
const registerFunc = "register"

// Module is one discovered plugin module.
type Module struct {
	// Path is the dotted module path, e.g. "config.columns.email".
	Path string
	// File is the absolute path of the .star source file.
	File string
}

// PrintFunc receives print() output from executing plugin code.
type PrintFunc func(module, line string)

// Loader loads config packages.
type Loader struct {
	logger *slog.Logger
	print  PrintFunc
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithPrint forwards plugin print() output, e.g. to a console.line
// telemetry frame.
func WithPrint(fn PrintFunc) Option {
	return func(l *Loader) { l.print = fn }
}

// NewLoader creates a loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ResolvePackage resolves a directory to the root of a config package.
// It tries, in order: the directory is itself a package, a src/<pkg>
// layout preferring a package named "config", and a flat layout with a
// "config" subdirectory.
func ResolvePackage(dir string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("config package dir: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("config package path is not a directory: %s", dir)
	}

	if isPackageDir(dir) {
		return dir, nil
	}

	// src/<pkg> layout.
	srcDir := filepath.Join(dir, "src")
	if candidates := packageDirsIn(srcDir); len(candidates) > 0 {
		for _, c := range candidates {
			if filepath.Base(c) == ConfigPackageName {
				return c, nil
			}
		}
		return candidates[0], nil
	}

	// Flat layout with the canonical package as a subdirectory.
	flat := filepath.Join(dir, ConfigPackageName)
	if isPackageDir(flat) {
		return flat, nil
	}

	return "", fmt.Errorf("%w: %s", ErrPackageNotFound, dir)
}

// isPackageDir reports whether dir holds at least one of the fixed
// detector subdirectories.
func isPackageDir(dir string) bool {
	for _, sub := range detectorDirs {
		if info, err := os.Stat(filepath.Join(dir, sub)); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}

// packageDirsIn lists package candidates directly under dir, sorted.
func packageDirsIn(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		child := filepath.Join(dir, e.Name())
		if isPackageDir(child) {
			out = append(out, child)
		}
	}
	sort.Strings(out)
	return out
}

// Discover finds the qualifying modules of a resolved package: .star
// files under the fixed subdirectories that are not under a tests
// directory, are not underscore-prefixed, and statically define a
// top-level register function. The result is sorted lexicographically
// by dotted module path.
func Discover(pkgDir string) ([]Module, error) {
	pkgName := filepath.Base(pkgDir)
	var modules []Module

	for _, sub := range detectorDirs {
		root := filepath.Join(pkgDir, sub)
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			continue
		}

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if d.Name() == "tests" {
					return filepath.SkipDir
				}
				return nil
			}
			name := d.Name()
			if !strings.HasSuffix(name, ".star") || strings.HasPrefix(name, "_") {
				return nil
			}

			ok, err := definesRegister(path)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}

			rel, err := filepath.Rel(pkgDir, path)
			if err != nil {
				return err
			}
			modules = append(modules, Module{
				Path: dottedPath(pkgName, rel),
				File: path,
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(modules, func(i, j int) bool { return modules[i].Path < modules[j].Path })
	return modules, nil
}

// definesRegister statically parses a .star file and reports whether it
// defines a top-level register function. The file is never executed, so
// rejected files cannot cause side effects.
func definesRegister(path string) (bool, error) {
	content, err := os.ReadFile(path) //nolint:gosec // G304: path comes from walking the config package
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	f, err := syntax.Parse(path, content, 0) //nolint:staticcheck // SA1019: will migrate to ParseOptions later
	if err != nil {
		return false, &ParseError{File: path, Message: err.Error()}
	}
	for _, stmt := range f.Stmts {
		if def, ok := stmt.(*syntax.DefStmt); ok && def.Name.Name == registerFunc {
			return true, nil
		}
	}
	return false, nil
}

// dottedPath converts a package-relative file path to a dotted module
// path, e.g. "columns/email.star" -> "config.columns.email".
func dottedPath(pkgName, rel string) string {
	rel = strings.TrimSuffix(rel, ".star")
	parts := append([]string{pkgName}, strings.Split(filepath.ToSlash(rel), "/")...)
	return strings.Join(parts, ".")
}

// Load resolves, discovers and executes a config package, returning the
// populated registry and the modules that registered, in invocation
// order. Configuration errors are fatal: a module whose register is not
// callable after execution, or a package with no qualifying modules,
// fails the load.
func (l *Loader) Load(dir string) (*registry.Registry, []Module, error) {
	pkgDir, err := ResolvePackage(dir)
	if err != nil {
		return nil, nil, err
	}

	modules, err := Discover(pkgDir)
	if err != nil {
		return nil, nil, err
	}
	if len(modules) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoModules, pkgDir)
	}

	reg := registry.New()
	for _, mod := range modules {
		if err := l.loadModule(reg, mod); err != nil {
			return nil, nil, err
		}
	}

	l.logger.Debug("config package loaded",
		"package", pkgDir,
		"modules", len(modules),
		"column_detectors", len(reg.ColumnDetectors()),
		"row_detectors", len(reg.RowDetectors()))

	return reg, modules, nil
}

// loadModule executes one module and invokes its register entry point.
func (l *Loader) loadModule(reg *registry.Registry, mod Module) error {
	content, err := os.ReadFile(mod.File) //nolint:gosec // G304: path comes from Discover
	if err != nil {
		return &LoadError{Module: mod.Path, File: mod.File, Message: err.Error()}
	}

	thread := &starlark.Thread{
		Name: "load:" + mod.Path,
		Print: func(_ *starlark.Thread, msg string) {
			if l.print != nil {
				l.print(mod.Path, msg)
			}
		},
	}

	globals, err := starlark.ExecFile(thread, mod.File, content, nil) //nolint:staticcheck // SA1019: will migrate to ExecFileOptions later
	if err != nil {
		return &LoadError{Module: mod.Path, File: mod.File, Message: err.Error()}
	}

	fn, ok := globals[registerFunc].(starlark.Callable)
	if !ok {
		return &LoadError{Module: mod.Path, File: mod.File, Message: "register is not callable"}
	}

	reg.BeginModule(mod.Path)
	regValue := NewRegistryValue(reg, mod.Path)
	if _, err := starlark.Call(thread, fn, starlark.Tuple{regValue}, nil); err != nil {
		return &LoadError{Module: mod.Path, File: mod.File, Message: fmt.Sprintf("register failed: %v", err)}
	}
	return nil
}
