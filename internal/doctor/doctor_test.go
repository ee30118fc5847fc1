package doctor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSecrets map[string]string

func (m mapSecrets) Get(scope, key string) (string, error) {
	if v, ok := m[scope+"/"+key]; ok {
		return v, nil
	}
	return "", os.ErrNotExist
}

func writeFiles(t *testing.T, workspaces, exceptions string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	wsPath := filepath.Join(dir, "workspaces.json")
	exPath := filepath.Join(dir, "apps_exception.json")
	require.NoError(t, os.WriteFile(wsPath, []byte(workspaces), 0o644))
	require.NoError(t, os.WriteFile(exPath, []byte(exceptions), 0o644))
	return wsPath, exPath
}

const goodWorkspaces = `[{"name": "prod", "endpoint": "https://ws.example.com", "application_id": "app-1"}]`

func TestValidateAllGood(t *testing.T) {
	wsPath, exPath := writeFiles(t, goodWorkspaces,
		`[{"app_url": "https://ws.example.com/apps/a", "expiry": ""}]`)

	d := New(wsPath, exPath, "ops", mapSecrets{"ops/app-1": "s3cret"})
	r := d.Validate()

	assert.True(t, r.Valid)
	assert.Empty(t, r.Errors)
	assert.Empty(t, r.Warnings)
	assert.Equal(t, "Configuration valid.\n", FormatHuman(r))
}

func TestValidateBadWorkspaceConfig(t *testing.T) {
	wsPath, exPath := writeFiles(t, `[]`, `[]`)

	d := New(wsPath, exPath, "ops", nil)
	r := d.Validate()

	assert.False(t, r.Valid)
	require.NotEmpty(t, r.Errors)
	assert.Equal(t, "workspaces", r.Errors[0].Category)
	assert.Contains(t, FormatHuman(r), "Configuration invalid")
}

func TestValidateExceptionWarnings(t *testing.T) {
	wsPath, exPath := writeFiles(t, goodWorkspaces, `[
  {"app_url": "https://ws.example.com/apps/a", "expiry": "2000-01-01"},
  {"app_url": "https://ws.example.com/apps/b", "expiry": "31-12-2026"}
]`)

	d := New(wsPath, exPath, "ops", mapSecrets{"ops/app-1": "s3cret"})
	d.now = func() time.Time { return time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC) }
	r := d.Validate()

	assert.True(t, r.Valid, "warnings do not invalidate")
	require.Len(t, r.Warnings, 2)
	assert.Contains(t, r.Warnings[0].Message, "expired on 2000-01-01")
	assert.Contains(t, r.Warnings[1].Message, "not YYYY-MM-DD")
}

func TestValidateMissingSecret(t *testing.T) {
	wsPath, exPath := writeFiles(t, goodWorkspaces, `[{"app_url": "https://x", "expiry": ""}]`)

	d := New(wsPath, exPath, "ops", mapSecrets{})
	r := d.Validate()

	assert.False(t, r.Valid)
	found := false
	for _, e := range r.Errors {
		if e.Category == "secrets" {
			found = true
		}
	}
	assert.True(t, found, "expected a secrets error")
}

func TestValidateMissingScope(t *testing.T) {
	wsPath, exPath := writeFiles(t, goodWorkspaces, `[{"app_url": "https://x", "expiry": ""}]`)

	d := New(wsPath, exPath, "", mapSecrets{})
	r := d.Validate()

	assert.False(t, r.Valid)
	assert.Contains(t, r.Errors[0].Message, "secret scope is required")
}

func TestFormatJSON(t *testing.T) {
	wsPath, exPath := writeFiles(t, goodWorkspaces, `[{"app_url": "https://x", "expiry": ""}]`)

	d := New(wsPath, exPath, "ops", mapSecrets{"ops/app-1": "s3cret"})
	out, err := FormatJSON(d.Validate())
	require.NoError(t, err)
	assert.Contains(t, out, `"valid": true`)
}
