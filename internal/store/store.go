// Package store persists checker output: reports, map images, markdown
// documents and the run history.
package store

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

// Document represents a markdown file with YAML frontmatter.
type Document struct {
	Frontmatter map[string]any
	Body        string
}

// ReadDocument reads a markdown file with YAML frontmatter.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", path, err)
	}

	var matter map[string]any
	body, err := frontmatter.Parse(strings.NewReader(string(data)), &matter)
	if err != nil {
		slog.Debug("no frontmatter found in document", "path", path, "error", err)
		return &Document{
			Frontmatter: make(map[string]any),
			Body:        string(data),
		}, nil
	}
	if matter == nil {
		matter = make(map[string]any)
	}

	return &Document{
		Frontmatter: matter,
		Body:        string(body),
	}, nil
}

// WriteDocument writes a markdown file with YAML frontmatter.
func WriteDocument(path string, doc *Document) error {
	var buf bytes.Buffer

	if len(doc.Frontmatter) > 0 {
		buf.WriteString("---\n")
		fm, err := yaml.Marshal(doc.Frontmatter)
		if err != nil {
			return fmt.Errorf("marshaling frontmatter: %w", err)
		}
		buf.Write(fm)
		buf.WriteString("---\n\n")
	}

	buf.WriteString(doc.Body)

	return WriteFile(path, buf.Bytes())
}

// WriteFile creates the parent directory if needed and writes data atomically.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := atomicWriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// atomicWriteFile writes data to a temp file then renames it into place,
// preventing partial writes on crash or disk-full.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Exists checks if a file exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
