package plugin

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/tabmap-io/tabmap/internal/registry"
	"github.com/tabmap-io/tabmap/pkg/core"
)

// registryValue exposes a *registry.Registry to plugin code as the
// argument of register(registry). It is bound to the module being
// loaded so registrations carry their origin.
type registryValue struct {
	reg    *registry.Registry
	module string
}

// NewRegistryValue wraps a registry for one module's register call.
func NewRegistryValue(reg *registry.Registry, module string) starlark.Value {
	return &registryValue{reg: reg, module: module}
}

func (r *registryValue) String() string        { return "<registry " + r.module + ">" }
func (r *registryValue) Type() string          { return "registry" }
func (r *registryValue) Freeze()               {}
func (r *registryValue) Truth() starlark.Bool  { return starlark.True }
func (r *registryValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: registry") }

// AttrNames lists the registration methods available to plugins.
func (r *registryValue) AttrNames() []string {
	return []string{"register_column_detector", "register_hook", "register_row_detector"}
}

// Attr returns a registration builtin bound to this registry.
func (r *registryValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "register_column_detector":
		return starlark.NewBuiltin(name, r.registerColumnDetector), nil
	case "register_row_detector":
		return starlark.NewBuiltin(name, r.registerRowDetector), nil
	case "register_hook":
		return starlark.NewBuiltin(name, r.registerHook), nil
	}
	return nil, nil
}

func (r *registryValue) registerColumnDetector(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var fn starlark.Callable
	var options starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"name", &name, "fn", &fn, "options?", &options); err != nil {
		return nil, err
	}

	opts, err := decodeDetectorOptions(options)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}

	if err := r.reg.AddColumnDetector(registry.ColumnDetector{
		Name:    name,
		Module:  r.module,
		Fn:      fn,
		Options: opts,
	}); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func (r *registryValue) registerRowDetector(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var fn starlark.Callable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "fn", &fn); err != nil {
		return nil, err
	}
	if err := r.reg.AddRowDetector(registry.RowDetector{Name: name, Module: r.module, Fn: fn}); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func (r *registryValue) registerHook(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var event string
	var fn starlark.Callable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "event", &event, "fn", &fn); err != nil {
		return nil, err
	}
	if err := r.reg.AddHook(registry.Hook{Event: event, Module: r.module, Fn: fn}); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

// decodeDetectorOptions converts the options dict from plugin code into
// typed detector options.
func decodeDetectorOptions(v starlark.Value) (registry.DetectorOptions, error) {
	var opts registry.DetectorOptions
	if v == nil || v == starlark.None {
		return opts, nil
	}
	raw, err := StarlarkToGo(v)
	if err != nil {
		return opts, fmt.Errorf("invalid options: %w", err)
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return opts, fmt.Errorf("options must be a dict, got %T", raw)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &opts,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return opts, err
	}
	if err := dec.Decode(m); err != nil {
		return opts, fmt.Errorf("invalid options: %w", err)
	}
	return opts, nil
}

// EmitFunc receives custom events from plugin code. The engine wires it
// to the config-scoped telemetry emitter.
type EmitFunc func(name string, payload map[string]any) error

// NewEmitterValue exposes an emit(type, payload=None) builtin to hooks.
func NewEmitterValue(emit EmitFunc) starlark.Value {
	return starlark.NewBuiltin("emit", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name string
		var payload starlark.Value
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "type", &name, "payload?", &payload); err != nil {
			return nil, err
		}
		var m map[string]any
		if payload != nil && payload != starlark.None {
			raw, err := StarlarkToGo(payload)
			if err != nil {
				return nil, err
			}
			var ok bool
			if m, ok = raw.(map[string]any); !ok {
				return nil, fmt.Errorf("emit: payload must be a dict, got %T", raw)
			}
		}
		if err := emit(name, m); err != nil {
			return nil, err
		}
		return starlark.None, nil
	})
}

// ColumnValue builds the column context passed to column detectors.
func ColumnValue(header string, index int, samples []string, fields []core.FieldSpec) starlark.Value {
	sampleList := make([]starlark.Value, len(samples))
	for i, s := range samples {
		sampleList[i] = starlark.String(s)
	}

	fieldDict := starlark.NewDict(len(fields))
	for _, f := range fields {
		_ = fieldDict.SetKey(starlark.String(f.Name), starlarkstruct.FromStringDict(
			starlark.String("field"), starlark.StringDict{
				"label":    starlark.String(f.Label),
				"required": starlark.Bool(f.Required),
			}))
	}

	return starlarkstruct.FromStringDict(starlark.String("column"), starlark.StringDict{
		"header":  starlark.String(header),
		"index":   starlark.MakeInt(index),
		"samples": starlark.NewList(sampleList),
		"fields":  fieldDict,
	})
}

// RowValue builds the row context passed to row detectors. values maps
// field names to the row's cell in the field's winning column.
func RowValue(index int, cells core.Row, values map[string]string) starlark.Value {
	cellList := make([]starlark.Value, len(cells))
	for i, c := range cells {
		cellList[i] = starlark.String(c)
	}
	valueDict := starlark.NewDict(len(values))
	for field, v := range values {
		_ = valueDict.SetKey(starlark.String(field), starlark.String(v))
	}
	return starlarkstruct.FromStringDict(starlark.String("row"), starlark.StringDict{
		"index":  starlark.MakeInt(index),
		"cells":  starlark.NewList(cellList),
		"values": valueDict,
	})
}
