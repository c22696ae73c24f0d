package docpipe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetect_StructureOverExtension(t *testing.T) {
	dir := t.TempDir()
	pipe := New(Config{})

	xlsxPath := filepath.Join(dir, "report.bin")
	writeXlsxFile(t, xlsxPath, []string{"Data"}, []string{sheetXML(`<row r="1"><c r="A1"><v>1</v></c></row>`)}, "")

	docxPath := filepath.Join(dir, "letter.dat")
	writeZipFile(t, docxPath, map[string]string{
		"word/document.xml": `<?xml version="1.0"?><document><body><p><r><t>hi</t></r></p></body></document>`,
	}, []string{"word/document.xml"})

	odtPath := filepath.Join(dir, "notes.zip")
	writeZipFile(t, odtPath, map[string]string{
		"content.xml": `<?xml version="1.0"?><document-content/>`,
	}, []string{"content.xml"})

	tests := []struct {
		name string
		path string
		want Format
	}{
		{"xlsx by workbook part", xlsxPath, FormatXlsx},
		{"docx by document part", docxPath, FormatDocx},
		{"odt by content part", odtPath, FormatODT},
		{"ole with xls extension", writeFile(t, filepath.Join(dir, "old.xls"), oleLikeHeader()), FormatXls},
		{"ole with doc extension", writeFile(t, filepath.Join(dir, "old.doc"), oleLikeHeader()), FormatDoc},
		{"ole defaults to doc", writeFile(t, filepath.Join(dir, "old.bin"), oleLikeHeader()), FormatDoc},
		{"pdf magic", writeFile(t, filepath.Join(dir, "paper.weird"), []byte("%PDF-1.4\n")), FormatPDF},
		{"plain text", writeFile(t, filepath.Join(dir, "readme.txt"), []byte("hello")), FormatTXT},
		{"markdown", writeFile(t, filepath.Join(dir, "readme.md"), []byte("# hi")), FormatMD},
		{"html", writeFile(t, filepath.Join(dir, "page.html"), []byte("<html></html>")), FormatHTML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pipe.Detect(tt.path)
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if got != tt.want {
				t.Errorf("Detect(%s) = %s, want %s", filepath.Base(tt.path), got, tt.want)
			}
		})
	}
}

func TestDetect_MissingFileFallsBackToExtension(t *testing.T) {
	pipe := New(Config{})

	got, err := pipe.Detect("/nowhere/absent.docx")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if got != FormatDocx {
		t.Errorf("format = %s, want %s", got, FormatDocx)
	}

	if _, err := pipe.Detect("/nowhere/absent.exe"); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestDetect_UnrecognizedZip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.zip")
	writeZipFile(t, path, map[string]string{"random.txt": "data"}, []string{"random.txt"})

	pipe := New(Config{})
	_, err := pipe.Detect(path)
	if !errors.Is(err, ErrMalformedContainer) {
		t.Fatalf("err = %v, want ErrMalformedContainer", err)
	}
}

func TestDetect_RenamedZipTrustsContainerExtension(t *testing.T) {
	// Some producers emit nonstandard part names; the container extension
	// still wins over a hard failure.
	dir := t.TempDir()
	path := filepath.Join(dir, "weird.xlsx")
	writeZipFile(t, path, map[string]string{"other/part.xml": "<x/>"}, []string{"other/part.xml"})

	pipe := New(Config{})
	got, err := pipe.Detect(path)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if got != FormatXlsx {
		t.Errorf("format = %s, want %s", got, FormatXlsx)
	}
}

func TestExtract_PlainText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "notes.txt"), []byte("First line here.\nSecond   line\twith gaps.\n"))

	pipe := New(Config{})
	doc, err := pipe.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if doc.Format != FormatTXT {
		t.Errorf("format = %s, want %s", doc.Format, FormatTXT)
	}
	if len(doc.Sections) != 1 {
		t.Fatalf("sections = %d, want 1", len(doc.Sections))
	}
	if want := "First line here. Second line with gaps."; doc.RawText != want {
		t.Errorf("raw text = %q, want %q", doc.RawText, want)
	}
}

func TestExtract_Markdown(t *testing.T) {
	dir := t.TempDir()
	content := "# Quarterly Summary\n\nRevenue grew in all regions.\n\n## Details\n\nSee appendix.\n"
	path := writeFile(t, filepath.Join(dir, "summary.md"), []byte(content))

	pipe := New(Config{})
	doc, err := pipe.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if doc.Title != "Quarterly Summary" {
		t.Errorf("title = %q, want %q", doc.Title, "Quarterly Summary")
	}

	var headings, paragraphs int
	for _, s := range doc.Sections {
		switch s.Type {
		case "heading":
			headings++
		case "paragraph":
			paragraphs++
		}
	}
	if headings != 2 || paragraphs != 2 {
		t.Errorf("headings = %d paragraphs = %d, want 2 and 2", headings, paragraphs)
	}
}

func TestExtract_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "blank.txt"), []byte("   \n\t\n"))

	pipe := New(Config{})
	_, err := pipe.Extract(context.Background(), path)
	if !IsEmptyDocument(err) {
		t.Fatalf("err = %v, want ErrEmptyDocument", err)
	}
}

func TestExtract_FileTooLarge(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "big.txt"), []byte(strings.Repeat("x", 100)))

	pipe := New(Config{MaxFileSize: 10})
	_, err := pipe.Extract(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("err = %v, want size limit error", err)
	}
}

func TestExtract_MissingFile(t *testing.T) {
	pipe := New(Config{})
	if _, err := pipe.Extract(context.Background(), "/nowhere/absent.txt"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSupportedFormats(t *testing.T) {
	formats := SupportedFormats()
	if len(formats) != 9 {
		t.Fatalf("formats = %d, want 9", len(formats))
	}
	seen := map[string]bool{}
	for _, f := range formats {
		seen[f] = true
	}
	for _, want := range []string{"xlsx", "xls", "docx", "doc", "odt", "pdf", "md", "txt", "html"} {
		if !seen[want] {
			t.Errorf("missing format %q", want)
		}
	}
}
