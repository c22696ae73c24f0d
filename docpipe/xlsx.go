package docpipe

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadWorkbook parses a modern container spreadsheet (.xlsx) using only
// archive/zip and encoding/xml. Sheets come back in manifest declaration
// order; the shared-string table is resolved fully before any sheet is
// parsed, since cell entries reference it by index.
func ReadWorkbook(path string) (*Workbook, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open zip: %v", ErrMalformedContainer, err)
	}
	defer r.Close()

	parts := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		parts[f.Name] = f
	}

	wbFile := parts["xl/workbook.xml"]
	if wbFile == nil {
		return nil, fmt.Errorf("%w: xl/workbook.xml not found in archive", ErrMalformedContainer)
	}

	var shared []string
	if ssFile := parts["xl/sharedStrings.xml"]; ssFile != nil {
		shared, err = readSharedStrings(ssFile)
		if err != nil {
			return nil, fmt.Errorf("%w: sharedStrings: %v", ErrMalformedContainer, err)
		}
	}

	rels := readWorkbookRels(parts["xl/_rels/workbook.xml.rels"])

	manifest, err := readSheetManifest(wbFile, rels)
	if err != nil {
		return nil, fmt.Errorf("%w: workbook manifest: %v", ErrMalformedContainer, err)
	}
	if len(manifest) == 0 {
		return nil, fmt.Errorf("workbook: %w", ErrEmptyDocument)
	}

	wb := &Workbook{}
	for _, entry := range manifest {
		sheetFile := parts[entry.part]
		if sheetFile == nil {
			return nil, fmt.Errorf("%w: sheet part %q not found", ErrMalformedContainer, entry.part)
		}
		rows, err := readSheetRows(sheetFile, shared)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", ErrMalformedContainer, entry.name, err)
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: entry.name, Rows: rows})
	}
	return wb, nil
}

type sheetEntry struct {
	name string
	part string
}

// readSheetManifest walks xl/workbook.xml and returns sheets in
// declaration order, resolving each r:id through the rels map. When rels
// are absent the conventional part name is derived from the sheet index.
func readSheetManifest(f *zip.File, rels map[string]string) ([]sheetEntry, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var entries []sheetEntry
	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "sheet" {
			continue
		}
		var name, rid string
		for _, attr := range se.Attr {
			switch attr.Name.Local {
			case "name":
				name = attr.Value
			case "id":
				rid = attr.Value
			}
		}
		if name == "" {
			continue
		}
		part := rels[rid]
		if part == "" {
			part = fmt.Sprintf("xl/worksheets/sheet%d.xml", len(entries)+1)
		}
		entries = append(entries, sheetEntry{name: name, part: part})
	}
	return entries, nil
}

// readWorkbookRels maps relationship ids to full part names. Missing or
// unreadable rels are tolerated; producers that omit them get the
// conventional sheet paths instead.
func readWorkbookRels(f *zip.File) map[string]string {
	rels := make(map[string]string)
	if f == nil {
		return rels
	}
	rc, err := f.Open()
	if err != nil {
		return rels
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Relationship" {
			continue
		}
		var id, target string
		for _, attr := range se.Attr {
			switch attr.Name.Local {
			case "Id":
				id = attr.Value
			case "Target":
				target = attr.Value
			}
		}
		if id == "" || target == "" {
			continue
		}
		target = strings.TrimPrefix(target, "/")
		if !strings.HasPrefix(target, "xl/") {
			target = "xl/" + target
		}
		rels[id] = target
	}
	return rels
}

// readSharedStrings parses xl/sharedStrings.xml into an append-only table.
// Rich-text runs (<r><t>…</t></r>) concatenate into one entry.
func readSharedStrings(f *zip.File) ([]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var table []string
	var sb strings.Builder
	var inSI, inT bool

	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "si":
				inSI = true
				sb.Reset()
			case "t":
				inT = inSI
			}
		case xml.CharData:
			if inT {
				sb.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inT = false
			case "si":
				inSI = false
				table = append(table, sb.String())
			}
		}
	}
	return table, nil
}

// readSheetRows streams a worksheet part. Row and column positions derive
// from the container's own cell references; gaps are preserved as empty
// values so downstream consumers keep positional alignment. Cells that omit
// the reference attribute get the position immediately following the
// previous cell in the row — some producers drop the attribute for
// contiguous data.
func readSheetRows(f *zip.File, shared []string) ([]Row, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var rows []Row

	var (
		cells    map[int]Cell // 1-based column → cell, current row
		maxCol   int
		rowNum   int // 1-based, current row
		prevCol  int // last column filled in the current row
		cellCol  int // column of the cell being parsed
		cellType string
		inValue  bool
		inInline bool
		inT      bool
		value    strings.Builder
		inline   strings.Builder
	)

	flushRow := func() {
		// Pad skipped rows so index i always means sheet row i+1.
		for len(rows) < rowNum-1 {
			rows = append(rows, Row{})
		}
		row := make(Row, maxCol)
		for i := range row {
			row[i] = Cell{Kind: CellEmpty}
		}
		for col, c := range cells {
			row[col-1] = c
		}
		rows = append(rows, row)
	}

	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "row":
				cells = make(map[int]Cell)
				maxCol = 0
				prevCol = 0
				n := rowNum + 1
				for _, attr := range t.Attr {
					if attr.Name.Local == "r" {
						if v, err := strconv.Atoi(attr.Value); err == nil && v > 0 {
							n = v
						}
					}
				}
				rowNum = n
			case "c":
				cellType = ""
				cellCol = prevCol + 1
				for _, attr := range t.Attr {
					switch attr.Name.Local {
					case "r":
						if _, col, ok := parseCellRef(attr.Value); ok {
							cellCol = col
						}
					case "t":
						cellType = attr.Value
					}
				}
				prevCol = cellCol
				inline.Reset()
			case "v":
				inValue = true
				value.Reset()
			case "is":
				inInline = true
			case "t":
				inT = inInline
			}

		case xml.CharData:
			if inValue {
				value.Write(t)
			} else if inT {
				inline.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "v":
				inValue = false
			case "t":
				inT = false
			case "is":
				inInline = false
			case "c":
				if cells == nil {
					break
				}
				cell := resolveCell(cellType, value.String(), inline.String(), shared)
				value.Reset()
				if cell.Kind != CellEmpty {
					cells[cellCol] = cell
					if cellCol > maxCol {
						maxCol = cellCol
					}
				}
			case "row":
				if cells != nil {
					flushRow()
					cells = nil
				}
			}
		}
	}
	return rows, nil
}

// resolveCell turns the raw cell payload into a typed value.
func resolveCell(cellType, value, inline string, shared []string) Cell {
	switch cellType {
	case "s":
		idx, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || idx < 0 || idx >= len(shared) {
			return Cell{Kind: CellEmpty}
		}
		return Cell{Kind: CellString, Str: shared[idx]}
	case "inlineStr":
		if inline == "" {
			return Cell{Kind: CellEmpty}
		}
		return Cell{Kind: CellString, Str: inline}
	case "b":
		return Cell{Kind: CellBool, Bool: strings.TrimSpace(value) == "1"}
	case "str", "e":
		// Formula-cached string, or an error literal like #DIV/0!.
		if value == "" {
			return Cell{Kind: CellEmpty}
		}
		return Cell{Kind: CellString, Str: value}
	default:
		// Numeric or general.
		v := strings.TrimSpace(value)
		if v == "" {
			return Cell{Kind: CellEmpty}
		}
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return Cell{Kind: CellNumber, Number: n}
		}
		return Cell{Kind: CellString, Str: v}
	}
}

// parseCellRef splits "C5" into row 5, column 3.
func parseCellRef(ref string) (row, col int, ok bool) {
	i := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		col = col*26 + int(ref[i]-'A'+1)
		i++
	}
	if i == 0 || i == len(ref) {
		return 0, 0, false
	}
	row, err := strconv.Atoi(ref[i:])
	if err != nil || row <= 0 || col <= 0 {
		return 0, 0, false
	}
	return row, col, true
}
