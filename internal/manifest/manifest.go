// Package manifest loads the schema manifest consumed from the
// authoring layer. The manifest format itself is opaque upstream
// concern; this package only reads the ordered field catalog and schema
// identity the engine needs.
package manifest

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tabmap-io/tabmap/pkg/core"
)

// Load reads a manifest YAML file.
func Load(path string) (*core.Manifest, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}

	var m core.Manifest
	if err := k.Unmarshal("", &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	if err := validate(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return &m, nil
}

// validate checks the minimal invariants the engine relies on.
func validate(m *core.Manifest) error {
	if m.SchemaID == "" {
		return fmt.Errorf("schema_id is required")
	}
	seen := make(map[string]struct{}, len(m.Fields))
	for i, f := range m.Fields {
		if f.Name == "" {
			return fmt.Errorf("field %d has no name", i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field name %q", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}
