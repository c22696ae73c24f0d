package docpipe

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// extractDocx parses a .docx file by reading word/document.xml from the ZIP
// archive. Paragraphs and table rows come back in document order; run-level
// text inside a paragraph is concatenated.
func extractDocx(path string) (string, []Section, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", nil, fmt.Errorf("%w: open zip: %v", ErrMalformedContainer, err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", nil, fmt.Errorf("%w: word/document.xml not found in archive", ErrMalformedContainer)
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", nil, fmt.Errorf("%w: open document.xml: %v", ErrMalformedContainer, err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var sections []Section
	var title string
	var currentText strings.Builder
	var inParagraph bool
	var paragraphStyle string

	// Table state. Cell texts accumulate per row; each finished row becomes
	// one tab-joined line in a table section.
	var tableDepth int
	var tableRows []string
	var rowCells []string

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, fmt.Errorf("%w: document.xml: %v", ErrMalformedContainer, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth++
				if tableDepth == 1 {
					tableRows = nil
				}
			case "tr":
				if tableDepth == 1 {
					rowCells = nil
				}
			case "tc":
				if tableDepth == 1 {
					rowCells = append(rowCells, "")
				}
			case "p":
				inParagraph = true
				currentText.Reset()
				paragraphStyle = ""
			case "pStyle":
				if inParagraph {
					for _, attr := range t.Attr {
						if attr.Name.Local == "val" {
							paragraphStyle = attr.Value
						}
					}
				}
			}

		case xml.CharData:
			if inParagraph {
				currentText.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if !inParagraph {
					continue
				}
				inParagraph = false
				text := strings.TrimSpace(currentText.String())
				if text == "" {
					continue
				}

				if tableDepth > 0 {
					if tableDepth == 1 && len(rowCells) > 0 {
						i := len(rowCells) - 1
						if rowCells[i] != "" {
							rowCells[i] += " "
						}
						rowCells[i] += text
					}
					continue
				}

				level := docxHeadingLevel(paragraphStyle)
				if level > 0 {
					if title == "" {
						title = text
					}
					sections = append(sections, Section{
						Title: text,
						Level: level,
						Text:  text,
						Type:  "heading",
					})
				} else {
					sections = append(sections, Section{
						Text: text,
						Type: "paragraph",
					})
				}

			case "tr":
				if tableDepth != 1 {
					continue
				}
				line := strings.TrimSpace(strings.Join(rowCells, "\t"))
				if line != "" {
					tableRows = append(tableRows, strings.Join(rowCells, "\t"))
				}
				rowCells = nil

			case "tbl":
				tableDepth--
				if tableDepth == 0 && len(tableRows) > 0 {
					sections = append(sections, Section{
						Text: strings.Join(tableRows, "\n"),
						Type: "table",
					})
					tableRows = nil
				}
			}
		}
	}

	return title, sections, nil
}

// docxHeadingLevel extracts the heading level from a paragraph style name.
// e.g. "Heading1" → 1, "Heading2" → 2, "Title" → 1, etc.
func docxHeadingLevel(style string) int {
	lower := strings.ToLower(style)

	if lower == "title" {
		return 1
	}
	if lower == "subtitle" {
		return 2
	}

	// "Heading1", "heading1", "Titre1", etc.
	for _, prefix := range []string{"heading", "titre", "überschrift"} {
		if strings.HasPrefix(lower, prefix) {
			rest := lower[len(prefix):]
			if len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
				return int(rest[0] - '0')
			}
		}
	}
	return 0
}
