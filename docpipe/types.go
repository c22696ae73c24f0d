package docpipe

import "strconv"

// Format identifies a document type.
type Format string

const (
	FormatXlsx Format = "xlsx"
	FormatXls  Format = "xls"
	FormatDocx Format = "docx"
	FormatDoc  Format = "doc"
	FormatODT  Format = "odt"
	FormatPDF  Format = "pdf"
	FormatMD   Format = "md"
	FormatTXT  Format = "txt"
	FormatHTML Format = "html"
)

// CellKind discriminates the typed value held by a Cell.
type CellKind string

const (
	CellEmpty  CellKind = "empty"
	CellString CellKind = "string"
	CellNumber CellKind = "number"
	CellBool   CellKind = "bool"
)

// Cell is one typed spreadsheet value. Exactly one of the value fields is
// meaningful, selected by Kind; an empty cell has Kind CellEmpty.
type Cell struct {
	Kind   CellKind `json:"kind"`
	Str    string   `json:"str,omitempty"`
	Number float64  `json:"number,omitempty"`
	Bool   bool     `json:"bool,omitempty"`
}

// Text renders the cell value for inclusion in extracted text.
func (c Cell) Text() string {
	switch c.Kind {
	case CellString:
		return c.Str
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellBool:
		if c.Bool {
			return "TRUE"
		}
		return "FALSE"
	default:
		return ""
	}
}

// Row is an ordered sequence of cells. Index 0 is column A; gaps in the
// source are preserved as empty cells, never compacted.
type Row []Cell

// Sheet is an ordered sequence of rows. Index 0 is row 1 of the sheet;
// skipped rows appear as empty rows so positions stay aligned.
type Sheet struct {
	Name string `json:"name"`
	Rows []Row  `json:"rows"`
}

// Workbook holds sheets in manifest declaration order. Sheet names are
// unique within a workbook.
type Workbook struct {
	Sheets []Sheet `json:"sheets"`
}

// Sheet returns the named sheet, or nil.
func (w *Workbook) Sheet(name string) *Sheet {
	for i := range w.Sheets {
		if w.Sheets[i].Name == name {
			return &w.Sheets[i]
		}
	}
	return nil
}

// SheetNames returns sheet names in declaration order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, len(w.Sheets))
	for i, s := range w.Sheets {
		names[i] = s.Name
	}
	return names
}

// RawExtraction is the result of a legacy binary scan: which strategy won,
// the text it recovered, and byte-count provenance for diagnostics.
type RawExtraction struct {
	Strategy    string `json:"strategy"`
	Text        string `json:"text"`
	InputBytes  int    `json:"input_bytes"`
	OutputBytes int    `json:"output_bytes"`
}

// CleanedText is the output of the quality filter.
type CleanedText struct {
	Text         string  `json:"text"`
	Usable       bool    `json:"usable"`
	Length       int     `json:"length"`
	LetterRatio  float64 `json:"letter_ratio"`
	LinesDropped int     `json:"lines_dropped"`
}

// Section is a structural unit of a document.
type Section struct {
	Title    string            `json:"title,omitempty"`
	Level    int               `json:"level"`              // heading level 1-6, 0 for body
	Text     string            `json:"text"`               // extracted text content
	Type     string            `json:"type"`               // heading, paragraph, table, sheet, page, list
	Metadata map[string]string `json:"metadata,omitempty"` // extra attributes
}

// Document is the result of extracting content from a file.
type Document struct {
	Path     string       `json:"path"`
	Format   Format       `json:"format"`
	Title    string       `json:"title"`
	Sections []Section    `json:"sections"`
	RawText  string       `json:"raw_text"`           // concatenated full text
	Workbook *Workbook    `json:"workbook,omitempty"` // spreadsheet formats only
	Strategy string       `json:"strategy,omitempty"` // binary-scan strategy, when one ran
	Quality  *CleanedText `json:"quality,omitempty"`  // filter verdict, when the filter ran
}
