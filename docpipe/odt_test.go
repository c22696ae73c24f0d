package docpipe

import (
	"errors"
	"path/filepath"
	"testing"
)

func writeODTFile(t *testing.T, path string, body string) {
	t.Helper()
	content := `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0">
<office:body><office:text>` + body + `</office:text></office:body>
</office:document-content>`
	writeZipFile(t, path, map[string]string{
		"mimetype":    "application/vnd.oasis.opendocument.text",
		"content.xml": content,
	}, []string{"mimetype", "content.xml"})
}

func TestExtractODT_HeadingsParagraphsLists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memo.odt")
	writeODTFile(t, path,
		`<text:h text:outline-level="1">Project Memo</text:h>`+
			`<text:p>Status is green.</text:p>`+
			`<text:list><text:list-item><text:p>first item</text:p></text:list-item>`+
			`<text:list-item><text:p>second item</text:p></text:list-item></text:list>`+
			`<text:h text:outline-level="2">Risks</text:h>`)

	title, sections, err := extractODT(path)
	if err != nil {
		t.Fatalf("extractODT: %v", err)
	}
	if title != "Project Memo" {
		t.Errorf("title = %q, want %q", title, "Project Memo")
	}
	if len(sections) != 5 {
		t.Fatalf("sections = %d, want 5", len(sections))
	}
	if sections[0].Type != "heading" || sections[0].Level != 1 {
		t.Errorf("section 0 = %+v, want level-1 heading", sections[0])
	}
	if sections[2].Type != "list" || sections[3].Type != "list" {
		t.Errorf("sections 2/3 types = %q/%q, want list items", sections[2].Type, sections[3].Type)
	}
	if sections[4].Level != 2 {
		t.Errorf("section 4 level = %d, want 2", sections[4].Level)
	}
}

func TestExtractODT_MissingContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hollow.odt")
	writeZipFile(t, path, map[string]string{"meta.xml": "<meta/>"}, []string{"meta.xml"})

	_, _, err := extractODT(path)
	if !errors.Is(err, ErrMalformedContainer) {
		t.Fatalf("err = %v, want ErrMalformedContainer", err)
	}
}
