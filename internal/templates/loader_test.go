package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverridePath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	assert.Equal(t, filepath.Join(dir, AppName, "templates", "report.md"), overridePath("report.md"))
}

func TestLoadBuiltin(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	tmpl, err := Load("report.md")
	require.NoError(t, err)
	assert.NotNil(t, tmpl.Lookup("messages"), "report.md defines the messages block")
}

func TestLoadNonExistent(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err := Load("nonexistent-template.md")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "loading template")
}

func TestLoadUserOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	overrideDir := filepath.Join(dir, AppName, "templates")
	require.NoError(t, os.MkdirAll(overrideDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(overrideDir, "report.md"), []byte("custom {{ .Name }}\n"), 0644))

	out, err := Execute("report.md", map[string]string{"Name": "tas.nc"})
	require.NoError(t, err)
	assert.Equal(t, "custom tas.nc\n", out)
}

func TestLoadUnreadableOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	// A directory in place of the override file is an error, not a fallback.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, AppName, "templates", "report.md"), 0755))

	_, err := Load("report.md")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "loading template report.md")
}

func TestLoadOverrideSyntaxError(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	overrideDir := filepath.Join(dir, AppName, "templates")
	require.NoError(t, os.MkdirAll(overrideDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(overrideDir, "report.md"), []byte("{{ .Name "), 0644))

	_, err := Load("report.md")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parsing template report.md")
}

func TestExecuteMissingField(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	overrideDir := filepath.Join(dir, AppName, "templates")
	require.NoError(t, os.MkdirAll(overrideDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(overrideDir, "broken.md"), []byte("{{ .Missing.Field }}"), 0644))

	_, err := Execute("broken.md", struct{}{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "executing template broken.md")
}
