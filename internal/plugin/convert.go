package plugin

import (
	"fmt"

	"go.starlark.net/starlark"
)

// GoToStarlark converts a Go value to a Starlark value.
// Supported types: nil, string, int, int64, float64, bool, []string,
// []any, map[string]any, and nested combinations thereof.
func GoToStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case string:
		return starlark.String(val), nil

	case int:
		return starlark.MakeInt(val), nil

	case int64:
		return starlark.MakeInt64(val), nil

	case float64:
		return starlark.Float(val), nil

	case bool:
		return starlark.Bool(val), nil

	case []string:
		items := make([]starlark.Value, len(val))
		for i, s := range val {
			items[i] = starlark.String(s)
		}
		return starlark.NewList(items), nil

	case []any:
		items := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := GoToStarlark(item)
			if err != nil {
				return nil, err
			}
			items[i] = sv
		}
		return starlark.NewList(items), nil

	case map[string]any:
		dict := starlark.NewDict(len(val))
		for k, item := range val {
			sv, err := GoToStarlark(item)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil

	default:
		return nil, fmt.Errorf("unsupported Go type %T", v)
	}
}

// StarlarkToGo converts a Starlark value to a Go value.
// Dicts become map[string]any (non-string keys are stringified), lists
// and tuples become []any, ints become int64 (or float64 on overflow).
func StarlarkToGo(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil

	case starlark.String:
		return string(val), nil

	case starlark.Bool:
		return bool(val), nil

	case starlark.Int:
		if i, ok := val.Int64(); ok {
			return i, nil
		}
		f, _ := starlark.AsFloat(val)
		return f, nil

	case starlark.Float:
		return float64(val), nil

	case *starlark.List:
		out := make([]any, 0, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := StarlarkToGo(val.Index(i))
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil

	case starlark.Tuple:
		out := make([]any, 0, len(val))
		for _, item := range val {
			gv, err := StarlarkToGo(item)
			if err != nil {
				return nil, err
			}
			out = append(out, gv)
		}
		return out, nil

	case *starlark.Dict:
		out := make(map[string]any, val.Len())
		for _, k := range val.Keys() {
			item, _, err := val.Get(k)
			if err != nil {
				return nil, err
			}
			gv, err := StarlarkToGo(item)
			if err != nil {
				return nil, err
			}
			key, ok := starlark.AsString(k)
			if !ok {
				key = k.String()
			}
			out[key] = gv
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported Starlark type %s", v.Type())
	}
}
