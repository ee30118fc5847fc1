package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadWorkspacesJSON(t *testing.T) {
	path := writeFile(t, "workspaces.json", `[
  {"name": "prod-east", "endpoint": "https://east.example.com", "application_id": "app-123"},
  {"name": "prod-west", "endpoint": "https://west.example.com", "application_id": "app-456"}
]`)

	workspaces, err := LoadWorkspaces(path)
	require.NoError(t, err)
	require.Len(t, workspaces, 2)
	assert.Equal(t, "prod-east", workspaces[0].Name)
	assert.Equal(t, "https://west.example.com", workspaces[1].Endpoint)
	assert.Equal(t, "app-456", workspaces[1].ApplicationID)
}

func TestLoadWorkspacesYAML(t *testing.T) {
	path := writeFile(t, "workspaces.yaml", `
- name: prod-east
  endpoint: https://east.example.com
  application_id: app-123
`)

	workspaces, err := LoadWorkspaces(path)
	require.NoError(t, err)
	require.Len(t, workspaces, 1)
	assert.Equal(t, "app-123", workspaces[0].ApplicationID)
}

func TestLoadWorkspacesEnvInterpolation(t *testing.T) {
	t.Setenv("SWEEP_TEST_APP_ID", "app-from-env")
	path := writeFile(t, "workspaces.json", `[
  {"name": "prod", "endpoint": "https://ws.example.com", "application_id": "${SWEEP_TEST_APP_ID}"}
]`)

	workspaces, err := LoadWorkspaces(path)
	require.NoError(t, err)
	assert.Equal(t, "app-from-env", workspaces[0].ApplicationID)
}

func TestLoadWorkspacesUnsetEnvVarFails(t *testing.T) {
	path := writeFile(t, "workspaces.json", `[
  {"name": "prod", "endpoint": "https://ws.example.com", "application_id": "${SWEEP_TEST_UNSET_VAR}"}
]`)

	_, err := LoadWorkspaces(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "SWEEP_TEST_UNSET_VAR")
}

func TestLoadWorkspacesValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing file ok body", ``, "parse workspace config"},
		{"empty array", `[]`, "empty"},
		{"missing name", `[{"endpoint": "https://x.example.com", "application_id": "a"}]`, "name is required"},
		{"duplicate name", `[
  {"name": "a", "endpoint": "https://x.example.com", "application_id": "1"},
  {"name": "a", "endpoint": "https://y.example.com", "application_id": "2"}
]`, "duplicate name"},
		{"relative endpoint", `[{"name": "a", "endpoint": "x.example.com", "application_id": "1"}]`, "not an absolute URL"},
		{"missing application_id", `[{"name": "a", "endpoint": "https://x.example.com"}]`, "application_id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "workspaces.json", tt.body)
			_, err := LoadWorkspaces(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadWorkspacesMissingFile(t *testing.T) {
	_, err := LoadWorkspaces(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestFingerprint(t *testing.T) {
	path := writeFile(t, "f.json", `[]`)

	h1, err := Fingerprint(path)
	require.NoError(t, err)
	assert.Len(t, h1, 64)

	require.NoError(t, os.WriteFile(path, []byte(`[{}]`), 0o644))
	h2, err := Fingerprint(path)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestFingerprintOrEmpty(t *testing.T) {
	h, err := FingerprintOrEmpty(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, h)
}
