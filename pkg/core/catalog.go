package core

// FieldSpec describes one schema field as declared by the manifest.
type FieldSpec struct {
	Name     string `json:"name" koanf:"name"`
	Label    string `json:"label" koanf:"label"`
	Required bool   `json:"required" koanf:"required"`
}

// Manifest is the opaque schema declaration consumed from the authoring
// layer: an ordered field catalog plus schema identity.
type Manifest struct {
	SchemaID      string      `json:"schema_id" koanf:"schema_id"`
	SchemaVersion string      `json:"schema_version" koanf:"schema_version"`
	SchemaName    string      `json:"schema_name" koanf:"schema_name"`
	Fields        []FieldSpec `json:"fields" koanf:"fields"`
}

// FieldCatalog maps field names to their specs. It is built once from
// the manifest; detectors may introduce new fields (label and required
// defaulted) but existing entries are never removed or overwritten.
type FieldCatalog struct {
	specs []FieldSpec
	index map[string]int
}

// NewFieldCatalog builds a catalog from the manifest's ordered fields.
func NewFieldCatalog(m *Manifest) *FieldCatalog {
	c := &FieldCatalog{index: make(map[string]int)}
	if m == nil {
		return c
	}
	for _, f := range m.Fields {
		c.Ensure(f.Name, f.Label, f.Required)
	}
	return c
}

// Ensure adds a field if it is not already present. The first
// declaration of a field wins; later calls never mutate it.
func (c *FieldCatalog) Ensure(name, label string, required bool) FieldSpec {
	if i, ok := c.index[name]; ok {
		return c.specs[i]
	}
	if label == "" {
		label = name
	}
	spec := FieldSpec{Name: name, Label: label, Required: required}
	c.index[name] = len(c.specs)
	c.specs = append(c.specs, spec)
	return spec
}

// Get returns the spec for a field name.
func (c *FieldCatalog) Get(name string) (FieldSpec, bool) {
	i, ok := c.index[name]
	if !ok {
		return FieldSpec{}, false
	}
	return c.specs[i], true
}

// Fields returns the specs in declaration order.
func (c *FieldCatalog) Fields() []FieldSpec {
	out := make([]FieldSpec, len(c.specs))
	copy(out, c.specs)
	return out
}

// Len returns the number of fields in the catalog.
func (c *FieldCatalog) Len() int { return len(c.specs) }
