// Package registry holds the detectors and hooks registered by a config
// package. A Registry is built fresh for every plugin load, so repeated
// runs can never observe state from a previous load of the same package
// name.
package registry

import (
	"fmt"
	"sync"

	"go.starlark.net/starlark"
)

// Hook event names.
const (
	HookRunStart    = "run_start"
	HookTable       = "table"
	HookRunComplete = "run_complete"
)

// validHookEvents guards registration against typos in plugin code.
var validHookEvents = map[string]struct{}{
	HookRunStart:    {},
	HookTable:       {},
	HookRunComplete: {},
}

// ColumnDetector is a plugin-supplied unit that scores a candidate
// column-to-field match.
type ColumnDetector struct {
	// Name identifies the detector in score contributions.
	Name string
	// Module is the dotted module path that registered the detector.
	Module string
	// Fn is the Starlark callable invoked per physical column.
	Fn starlark.Callable
	// Options carries detector-specific configuration from registration.
	Options DetectorOptions
}

// DetectorOptions is the decoded options dict passed at registration.
type DetectorOptions struct {
	// Threshold is advisory detector configuration; the engine never
	// interprets it. Satisfaction is decided by the detector itself.
	Threshold float64 `mapstructure:"threshold"`
	// Fields optionally restricts which fields the detector scores.
	Fields []string `mapstructure:"fields"`
}

// Allows reports whether the detector may score a field. An empty
// Fields list allows every field.
func (o DetectorOptions) Allows(field string) bool {
	if len(o.Fields) == 0 {
		return true
	}
	for _, f := range o.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// RowDetector is a plugin-supplied unit that validates rows.
type RowDetector struct {
	Name   string
	Module string
	Fn     starlark.Callable
}

// Hook is a plugin-supplied lifecycle callback.
type Hook struct {
	Event  string
	Module string
	Fn     starlark.Callable
}

// Registry collects detectors and hooks in registration order.
// Registration order is deterministic because the plugin loader invokes
// register entry points in lexicographic module order, and order matters:
// it decides tie-breaking in scoring.
type Registry struct {
	mu sync.RWMutex

	columnDetectors []ColumnDetector
	rowDetectors    []RowDetector
	hooks           []Hook
	modules         []string
	seenModules     map[string]struct{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{seenModules: make(map[string]struct{})}
}

// BeginModule records that a module's register entry point is being
// invoked. Module names are kept in invocation order.
func (r *Registry) BeginModule(module string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seenModules[module]; ok {
		return
	}
	r.seenModules[module] = struct{}{}
	r.modules = append(r.modules, module)
}

// AddColumnDetector registers a column detector.
func (r *Registry) AddColumnDetector(d ColumnDetector) error {
	if d.Name == "" {
		return fmt.Errorf("column detector requires a name")
	}
	if d.Fn == nil {
		return fmt.Errorf("column detector %q requires a callable", d.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.columnDetectors = append(r.columnDetectors, d)
	return nil
}

// AddRowDetector registers a row detector.
func (r *Registry) AddRowDetector(d RowDetector) error {
	if d.Name == "" {
		return fmt.Errorf("row detector requires a name")
	}
	if d.Fn == nil {
		return fmt.Errorf("row detector %q requires a callable", d.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rowDetectors = append(r.rowDetectors, d)
	return nil
}

// AddHook registers a lifecycle hook.
func (r *Registry) AddHook(h Hook) error {
	if _, ok := validHookEvents[h.Event]; !ok {
		return fmt.Errorf("unknown hook event %q", h.Event)
	}
	if h.Fn == nil {
		return fmt.Errorf("hook %q requires a callable", h.Event)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
	return nil
}

// ColumnDetectors returns registered column detectors in order.
func (r *Registry) ColumnDetectors() []ColumnDetector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ColumnDetector, len(r.columnDetectors))
	copy(out, r.columnDetectors)
	return out
}

// RowDetectors returns registered row detectors in order.
func (r *Registry) RowDetectors() []RowDetector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RowDetector, len(r.rowDetectors))
	copy(out, r.rowDetectors)
	return out
}

// Hooks returns registered hooks for an event, in registration order.
func (r *Registry) Hooks(event string) []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Hook
	for _, h := range r.hooks {
		if h.Event == event {
			out = append(out, h)
		}
	}
	return out
}

// ModuleNames returns the modules whose register entry points ran, in
// invocation order. Loading the same package twice must yield the same
// list.
func (r *Registry) ModuleNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.modules))
	copy(out, r.modules)
	return out
}
