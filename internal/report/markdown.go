package report

import (
	"fmt"
	"time"

	"github.com/knmi/adaguc-checker/internal/store"
	"github.com/knmi/adaguc-checker/internal/templates"
)

const markdownTemplate = "report.md"

// Meta describes the run a report belongs to.
type Meta struct {
	File      string
	Checks    string
	Generated time.Time
}

// WriteMarkdown writes the report as a markdown document whose frontmatter
// carries the run metadata and the totals.
func WriteMarkdown(path string, meta Meta, r *Report) error {
	body, err := RenderMarkdown(meta, r)
	if err != nil {
		return err
	}
	doc := &store.Document{
		Frontmatter: map[string]any{
			"file":      meta.File,
			"checks":    meta.Checks,
			"generated": store.FormatTime(meta.Generated),
			"nerrors":   r.Errors,
			"nwarnings": r.Warnings,
			"ninfo":     r.Info,
		},
		Body: body,
	}
	return store.WriteDocument(path, doc)
}

// RenderMarkdown renders the report body with the report.md template: one
// section per report part, the map images inlined as data URIs.
func RenderMarkdown(meta Meta, r *Report) (string, error) {
	return templates.Execute(markdownTemplate, struct {
		Meta   Meta
		Report *Report
	}{meta, r})
}

// MarkdownSummary is the frontmatter of a markdown report.
type MarkdownSummary struct {
	Meta
	Counts
}

// ReadMarkdownSummary reads the run metadata and totals back from a markdown report.
func ReadMarkdownSummary(path string) (*MarkdownSummary, error) {
	doc, err := store.ReadDocument(path)
	if err != nil {
		return nil, err
	}
	fm := doc.Frontmatter
	if store.GetString(fm, "file") == "" {
		return nil, fmt.Errorf("%s has no report frontmatter", path)
	}
	return &MarkdownSummary{
		Meta: Meta{
			File:      store.GetString(fm, "file"),
			Checks:    store.GetString(fm, "checks"),
			Generated: store.GetTime(fm, "generated"),
		},
		Counts: Counts{
			Errors:   store.GetInt(fm, "nerrors"),
			Warnings: store.GetInt(fm, "nwarnings"),
			Info:     store.GetInt(fm, "ninfo"),
		},
	}, nil
}
