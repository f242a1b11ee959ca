package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeManifest(t, `
schema_id: contacts-v2
schema_version: "2.1"
schema_name: Contacts
fields:
  - name: email
    label: Email Address
    required: true
  - name: name
    label: Full Name
  - name: phone
`)

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "contacts-v2", m.SchemaID)
	assert.Equal(t, "2.1", m.SchemaVersion)
	require.Len(t, m.Fields, 3)
	assert.Equal(t, "email", m.Fields[0].Name)
	assert.True(t, m.Fields[0].Required)
	assert.False(t, m.Fields[1].Required)
	assert.Equal(t, "phone", m.Fields[2].Name)
}

func TestLoadRejectsMissingSchemaID(t *testing.T) {
	path := writeManifest(t, `
fields:
  - name: email
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema_id")
}

func TestLoadRejectsDuplicateFields(t *testing.T) {
	path := writeManifest(t, `
schema_id: s
fields:
  - name: email
  - name: email
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate field")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
