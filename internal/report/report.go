// Package report renders analysis results as standalone HTML pages.
// Chart data is embedded as JSON and drawn client-side by plotly.
package report

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"math"
	"os"
	"path/filepath"
)

//go:embed templates/*
var templateFS embed.FS

// Chart is one plotly figure on a page.
type Chart struct {
	ID     string
	Title  string
	Traces template.JS
	Layout template.JS
}

// Page is a rendered report document.
type Page struct {
	Title  string
	Charts []Chart
}

// Write renders the page as HTML.
func Write(w io.Writer, page *Page) error {
	tmpl, err := template.ParseFS(templateFS, "templates/page.html")
	if err != nil {
		return fmt.Errorf("parsing report template: %w", err)
	}
	return tmpl.Execute(w, page)
}

// WriteFile renders the page to the given path, creating parent
// directories as needed.
func WriteFile(path string, page *Page) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating report dir: %w", err)
		}
	}
	f, err := os.Create(path) // #nosec G304 - caller controls the output path
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return Write(f, page)
}

// newChart marshals traces and layout for embedding. Marshal errors are
// impossible for the map/slice shapes used here, so they panic.
func newChart(id, title string, traces []map[string]any, layout map[string]any) Chart {
	t, err := json.Marshal(traces)
	if err != nil {
		panic(err)
	}
	l, err := json.Marshal(layout)
	if err != nil {
		panic(err)
	}
	return Chart{
		ID:     id,
		Title:  title,
		Traces: template.JS(t), // #nosec G203 - output of json.Marshal
		Layout: template.JS(l), // #nosec G203 - output of json.Marshal
	}
}

// sanitize replaces non-finite values, which are not valid JSON, with
// nulls that plotly renders as gaps.
func sanitize(values []float64) []any {
	out := make([]any, len(values))
	for i, v := range values {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			out[i] = nil
			continue
		}
		out[i] = v
	}
	return out
}
