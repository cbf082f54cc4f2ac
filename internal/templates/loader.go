// Package templates holds the text templates reports are rendered with.
// A file of the same name under ~/.config/adaguc-checker/templates replaces
// the built-in template.
package templates

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// AppName names the user config directory overrides are read from.
const AppName = "adaguc-checker"

//go:embed *.md
var builtinFS embed.FS

// overridePath returns where a user override of the named template lives,
// or "" when the user config directory is unknown.
func overridePath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, AppName, "templates", name)
}

// Load parses the named template, preferring the user override.
func Load(name string) (*template.Template, error) {
	src, err := source(name)
	if err != nil {
		return nil, fmt.Errorf("loading template %s: %w", name, err)
	}
	tmpl, err := template.New(name).Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", name, err)
	}
	return tmpl, nil
}

func source(name string) (string, error) {
	if path := overridePath(name); path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			slog.Debug("using template override", "path", path)
			return string(data), nil
		case !errors.Is(err, fs.ErrNotExist):
			return "", err
		}
	}
	data, err := builtinFS.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Execute renders the named template with data.
func Execute(name string, data any) (string, error) {
	tmpl, err := Load(name)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("executing template %s: %w", name, err)
	}
	return sb.String(), nil
}
