package engine

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/tabmap-io/tabmap/internal/plugin"
	"github.com/tabmap-io/tabmap/internal/telemetry"
	"github.com/tabmap-io/tabmap/pkg/core"
)

// runHooks invokes every hook registered for an event, in registration
// order. Each hook receives a context struct carrying the event fields
// plus an emit builtin bound to the config telemetry scope. A hook
// raising is a configuration error and fails the run.
func (e *Engine) runHooks(r *run, event string, fields map[string]any) error {
	hooks := r.registry.Hooks(event)
	if len(hooks) == 0 {
		return nil
	}

	hookCtx, err := hookContext(fields, func(name string, payload map[string]any) error {
		r.config.Emit(name, core.SeverityInfo, payload)
		return nil
	})
	if err != nil {
		return &core.RunError{Code: CodeInternal, Stage: "hooks", Message: err.Error()}
	}

	for _, h := range hooks {
		thread := &starlark.Thread{
			Name: "hook:" + event + ":" + h.Module,
			Print: func(_ *starlark.Thread, msg string) {
				r.console.Emit(telemetry.TypeConsoleLine, core.SeverityInfo, map[string]any{
					"module": h.Module,
					"line":   msg,
				})
			},
		}
		if _, err := starlark.Call(thread, h.Fn, starlark.Tuple{hookCtx}, nil); err != nil {
			return &core.RunError{
				Code:    CodeHookFailed,
				Stage:   "hooks",
				Message: fmt.Sprintf("%s hook in %s: %v", event, h.Module, err),
			}
		}
	}
	return nil
}

// hookContext builds the struct passed to hook callables.
func hookContext(fields map[string]any, emit plugin.EmitFunc) (starlark.Value, error) {
	dict := starlark.StringDict{
		"emit": plugin.NewEmitterValue(emit),
	}
	for k, v := range fields {
		sv, err := plugin.GoToStarlark(v)
		if err != nil {
			return nil, fmt.Errorf("hook context field %q: %w", k, err)
		}
		dict[k] = sv
	}
	return starlarkstruct.FromStringDict(starlark.String("hook_context"), dict), nil
}
