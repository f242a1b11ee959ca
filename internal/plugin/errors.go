package plugin

import (
	"errors"
	"fmt"
)

// Sentinel errors for package resolution and discovery.
var (
	// ErrPackageNotFound means the directory could not be resolved to a
	// config package under any supported layout.
	ErrPackageNotFound = errors.New("config package not found")

	// ErrNoModules means no module in the three detector subdirectories
	// defines a register entry point.
	ErrNoModules = errors.New("no registrable modules found in config package")
)

// LoadError describes a failure loading one plugin module.
type LoadError struct {
	Module  string
	File    string
	Message string
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Module != "" {
		return fmt.Sprintf("plugin module %s (%s): %s", e.Module, e.File, e.Message)
	}
	return fmt.Sprintf("plugin file %s: %s", e.File, e.Message)
}

// ParseError describes a syntax failure statically parsing a module.
type ParseError struct {
	File    string
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.File, e.Message)
}
