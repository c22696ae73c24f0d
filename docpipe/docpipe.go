// Package docpipe extracts structured text from document files.
//
// Supported formats:
//   - .xlsx  — Excel 2007+ (archive/zip → xl/*.xml, no spreadsheet library)
//   - .xls   — legacy Excel (external conversion chain → xlsx reader)
//   - .docx  — Microsoft Word (archive/zip → word/document.xml)
//   - .doc   — legacy Word (OLE2 byte-scan heuristics + quality filter)
//   - .odt   — OpenDocument Text (archive/zip → content.xml)
//   - .pdf   — PDF text extraction (pdfcpu content streams)
//   - .md    — Markdown (parsed with heading detection)
//   - .txt   — Plain text (passthrough with whitespace normalization)
//   - .html  — HTML (sanitize → markdown conversion)
//
// Format routing sniffs file structure (zip magic, OLE2 magic, %PDF) rather
// than trusting the extension alone.
//
// Usage:
//
//	pipe := docpipe.New(docpipe.Config{})
//	doc, err := pipe.Extract(ctx, "/path/to/report.xlsx")
//	fmt.Println(doc.Title, len(doc.Sections), "sections")
package docpipe

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Pipeline is the document extraction engine.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Pipeline with the given configuration.
func New(cfg Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// oleMagic is the OLE2 compound file signature (legacy .doc/.xls).
var oleMagic = []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}

// Detect returns the document format, sniffing file structure first and
// falling back to the extension for plain-text formats or when the file
// cannot be opened.
func (p *Pipeline) Detect(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))

	header := make([]byte, 8)
	f, err := os.Open(path)
	if err == nil {
		n, _ := f.Read(header)
		f.Close()
		header = header[:n]

		switch {
		case len(header) >= 4 && bytes.HasPrefix(header, []byte("PK\x03\x04")):
			return detectZipContainer(path, ext)
		case len(header) >= 8 && bytes.Equal(header, oleMagic):
			// Legacy compound binary. The spreadsheet/word split rides on
			// the extension hint; default to word-processor.
			if ext == ".xls" {
				return FormatXls, nil
			}
			return FormatDoc, nil
		case len(header) >= 4 && bytes.HasPrefix(header, []byte("%PDF")):
			return FormatPDF, nil
		}
	}

	return detectByExtension(ext)
}

// detectZipContainer disambiguates a zip archive by its internal parts.
func detectZipContainer(path string, ext string) (Format, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: open zip %s: %v", ErrMalformedContainer, path, err)
	}
	defer r.Close()

	for _, f := range r.File {
		switch f.Name {
		case "xl/workbook.xml":
			return FormatXlsx, nil
		case "word/document.xml":
			return FormatDocx, nil
		case "content.xml":
			return FormatODT, nil
		}
	}

	// Zip without a known part — trust the extension if it names a
	// container format (some producers rename parts).
	switch ext {
	case ".xlsx":
		return FormatXlsx, nil
	case ".docx":
		return FormatDocx, nil
	case ".odt":
		return FormatODT, nil
	}
	return "", fmt.Errorf("%w: zip archive with no recognized document part", ErrMalformedContainer)
}

func detectByExtension(ext string) (Format, error) {
	switch ext {
	case ".xlsx":
		return FormatXlsx, nil
	case ".xls":
		return FormatXls, nil
	case ".docx":
		return FormatDocx, nil
	case ".doc":
		return FormatDoc, nil
	case ".odt":
		return FormatODT, nil
	case ".pdf":
		return FormatPDF, nil
	case ".md", ".markdown":
		return FormatMD, nil
	case ".txt", ".text":
		return FormatTXT, nil
	case ".html", ".htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unsupported format: %q", ext)
	}
}

// Extract parses a document and returns structured sections.
func (p *Pipeline) Extract(ctx context.Context, path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > p.cfg.MaxFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), p.cfg.MaxFileSize)
	}

	format, err := p.Detect(path)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("extracting document", "path", path, "format", format)

	switch format {
	case FormatXlsx:
		return p.extractWorkbookDoc(path, FormatXlsx)
	case FormatXls:
		return p.extractLegacySpreadsheet(ctx, path)
	case FormatDoc:
		return p.extractLegacyWord(path)
	}

	var sections []Section
	var title string

	switch format {
	case FormatDocx:
		title, sections, err = extractDocx(path)
	case FormatODT:
		title, sections, err = extractODT(path)
	case FormatPDF:
		title, sections, err = extractPDF(path)
	case FormatMD:
		title, sections, err = extractMarkdown(path)
	case FormatTXT:
		title, sections, err = extractText(path)
	case FormatHTML:
		title, sections, err = extractHTMLFile(path)
	default:
		return nil, fmt.Errorf("no parser for format: %s", format)
	}

	if err != nil {
		return nil, fmt.Errorf("extract %s (%s): %w", path, format, err)
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("extract %s (%s): %w", path, format, ErrEmptyDocument)
	}

	return &Document{
		Path:     path,
		Format:   format,
		Title:    title,
		Sections: sections,
		RawText:  joinSections(sections),
	}, nil
}

// extractWorkbookDoc reads a modern container spreadsheet into a Document.
func (p *Pipeline) extractWorkbookDoc(path string, format Format) (*Document, error) {
	wb, err := ReadWorkbook(path)
	if err != nil {
		return nil, fmt.Errorf("extract %s (%s): %w", path, format, err)
	}
	return workbookDocument(path, format, wb)
}

// extractLegacySpreadsheet handles legacy .xls: a direct container read is
// attempted first (plenty of ".xls" files are really renamed xlsx), then
// the external conversion chain. Binary scanning is never used here —
// spreadsheet binary layouts are too structured for heuristic scraping.
func (p *Pipeline) extractLegacySpreadsheet(ctx context.Context, path string) (*Document, error) {
	if wb, err := ReadWorkbook(path); err == nil {
		p.logger.Debug("xls readable as container, skipping conversion", "path", path)
		return workbookDocument(path, FormatXls, wb)
	}

	converted, cleanup, err := p.convert(ctx, path)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	doc, err := p.extractWorkbookDoc(converted, FormatXls)
	if err != nil {
		return nil, err
	}
	doc.Path = path
	return doc, nil
}

// extractLegacyWord runs the binary-scan heuristics and the quality filter.
// When the filter judges the result unusable, the raw scan text is kept but
// the verdict stays attached to the Document so consumers see the
// degradation instead of silently receiving noise.
func (p *Pipeline) extractLegacyWord(path string) (*Document, error) {
	raw, err := ExtractLegacyBinary(path)
	if err != nil {
		return nil, fmt.Errorf("extract %s (doc): %w", path, err)
	}

	cleaned := CleanText(raw.Text, p.cfg.AggressiveClean)
	text := cleaned.Text
	if !cleaned.Usable {
		p.logger.Warn("quality filter rejected scan output, keeping raw text",
			"path", path, "strategy", raw.Strategy, "length", cleaned.Length, "letter_ratio", cleaned.LetterRatio)
		text = strings.TrimSpace(raw.Text)
	}

	p.logger.Debug("legacy word extraction",
		"path", path, "strategy", raw.Strategy,
		"input_bytes", raw.InputBytes, "output_bytes", raw.OutputBytes,
		"usable", cleaned.Usable)

	sections := []Section{{
		Text: text,
		Type: "paragraph",
		Metadata: map[string]string{
			"strategy": raw.Strategy,
		},
	}}

	return &Document{
		Path:     path,
		Format:   FormatDoc,
		Title:    firstLine(text),
		Sections: sections,
		RawText:  text,
		Strategy: raw.Strategy,
		Quality:  cleaned,
	}, nil
}

func workbookDocument(path string, format Format, wb *Workbook) (*Document, error) {
	sections := workbookSections(wb)
	title := ""
	if len(wb.Sheets) > 0 {
		title = wb.Sheets[0].Name
	}
	return &Document{
		Path:     path,
		Format:   format,
		Title:    title,
		Sections: sections,
		RawText:  joinSections(sections),
		Workbook: wb,
	}, nil
}

// workbookSections renders one section per sheet, rows joined cell-by-cell
// so the text form stays scannable by a language model.
func workbookSections(wb *Workbook) []Section {
	var sections []Section
	for _, sheet := range wb.Sheets {
		var sb strings.Builder
		for _, row := range sheet.Rows {
			line := renderRow(row)
			if line == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(line)
		}
		sections = append(sections, Section{
			Title: sheet.Name,
			Text:  sb.String(),
			Type:  "sheet",
			Metadata: map[string]string{
				"rows": fmt.Sprintf("%d", len(sheet.Rows)),
			},
		})
	}
	return sections
}

func renderRow(row Row) string {
	var parts []string
	for _, c := range row {
		if c.Kind == CellEmpty {
			continue
		}
		parts = append(parts, c.Text())
	}
	return strings.Join(parts, " | ")
}

func joinSections(sections []Section) string {
	var sb strings.Builder
	for i, s := range sections {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if s.Title != "" {
			sb.WriteString(s.Title)
			sb.WriteByte('\n')
		}
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// IsEmptyDocument reports whether err is the legitimate zero-content
// condition rather than a parse failure.
func IsEmptyDocument(err error) bool {
	return errors.Is(err, ErrEmptyDocument)
}

// SupportedFormats returns all supported format extensions.
func SupportedFormats() []string {
	return []string{"xlsx", "xls", "docx", "doc", "odt", "pdf", "md", "txt", "html"}
}
