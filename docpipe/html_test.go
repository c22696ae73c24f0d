package docpipe

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtractHTML_TitleAndSections(t *testing.T) {
	dir := t.TempDir()
	page := `<!DOCTYPE html>
<html>
<head><title>Release Notes</title></head>
<body>
<h1>Version 2.0</h1>
<p>This release adds streaming support.</p>
<h2>Fixes</h2>
<p>Closed several crash reports.</p>
</body>
</html>`
	path := writeFile(t, filepath.Join(dir, "notes.html"), []byte(page))

	pipe := New(Config{})
	doc, err := pipe.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if doc.Format != FormatHTML {
		t.Errorf("format = %s, want %s", doc.Format, FormatHTML)
	}
	if doc.Title != "Release Notes" {
		t.Errorf("title = %q, want %q", doc.Title, "Release Notes")
	}

	var headings []string
	for _, s := range doc.Sections {
		if s.Type == "heading" {
			headings = append(headings, s.Title)
		}
	}
	if len(headings) != 2 || headings[0] != "Version 2.0" || headings[1] != "Fixes" {
		t.Errorf("headings = %v, want [Version 2.0 Fixes]", headings)
	}
	if !strings.Contains(doc.RawText, "streaming support") {
		t.Errorf("raw text = %q, want paragraph content", doc.RawText)
	}
}

func TestExtractHTML_ScriptsStripped(t *testing.T) {
	dir := t.TempDir()
	page := `<html><body>
<p>Visible paragraph content stays in the output.</p>
<script>alert("nope")</script>
<style>body { color: red }</style>
</body></html>`
	path := writeFile(t, filepath.Join(dir, "page.html"), []byte(page))

	pipe := New(Config{})
	doc, err := pipe.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if strings.Contains(doc.RawText, "alert") || strings.Contains(doc.RawText, "color: red") {
		t.Errorf("active content leaked into text: %q", doc.RawText)
	}
	if !strings.Contains(doc.RawText, "Visible paragraph content") {
		t.Errorf("raw text = %q, want the visible paragraph", doc.RawText)
	}
}

func TestExtractHTML_NoTitleFallsBackToHeading(t *testing.T) {
	dir := t.TempDir()
	page := `<html><body><h1>Standalone Heading</h1><p>Body text.</p></body></html>`
	path := writeFile(t, filepath.Join(dir, "bare.html"), []byte(page))

	title, _, err := extractHTMLFile(path)
	if err != nil {
		t.Fatalf("extractHTMLFile: %v", err)
	}
	if title != "Standalone Heading" {
		t.Errorf("title = %q, want %q", title, "Standalone Heading")
	}
}
