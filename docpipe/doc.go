package docpipe

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/unicode"
)

// minScanLen is the minimum trimmed output length for a scan strategy to
// count as a result.
const minScanLen = 32

// scanStrategy is one byte-to-text heuristic. Strategies run in a fixed
// priority order and the first non-trivial result wins.
type scanStrategy struct {
	name string
	scan func([]byte) string
}

// Ordered by how well each heuristic preserves word boundaries in the
// common legacy dialects: null-delimited blocks first, maximal printable
// runs second, 16-bit little-endian decoding last.
var scanStrategies = []scanStrategy{
	{"null-blocks", scanNullBlocks},
	{"printable-runs", scanPrintableRuns},
	{"utf16le", scanWideChars},
}

// ExtractLegacyBinary recovers text from a legacy compound-binary
// word-processor file. When the file parses as an OLE2 compound document,
// scanning narrows to the WordDocument stream; otherwise the whole byte
// buffer is scanned. Pure transform — no I/O beyond the initial read.
func ExtractLegacyBinary(path string) (*RawExtraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyDocument)
	}

	input := data
	if stream := wordDocumentStream(data); stream != nil {
		input = stream
	}

	for _, s := range scanStrategies {
		text := strings.TrimSpace(s.scan(input))
		if len(text) >= minScanLen {
			return &RawExtraction{
				Strategy:    s.name,
				Text:        text,
				InputBytes:  len(data),
				OutputBytes: len(text),
			}, nil
		}
	}
	return nil, fmt.Errorf("scanned %d bytes with %d strategies: %w",
		len(data), len(scanStrategies), ErrNoRecoverableText)
}

// wordDocumentStream returns the WordDocument stream of an OLE2 compound
// file, or nil when the file is not compound or the stream is absent. The
// narrowed stream keeps the scan away from property sets and object pools.
func wordDocumentStream(data []byte) []byte {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	for {
		entry, err := doc.Next()
		if err != nil {
			return nil
		}
		if entry.Name == "WordDocument" {
			stream, err := io.ReadAll(entry)
			if err != nil || len(stream) == 0 {
				return nil
			}
			return stream
		}
	}
}

// scanNullBlocks walks the byte stream treating NUL, tab, newline, CR and
// space as token boundaries, keeping printable runs as words rejoined with
// single spaces. Best word-boundary preservation for producers that
// intersperse text with null bytes and short binary records.
func scanNullBlocks(data []byte) string {
	var words []string
	var cur []byte

	flush := func() {
		if len(cur) > 2 {
			word := strings.TrimSpace(decodeLatin1(cur))
			if isLikelyWord(word) {
				words = append(words, word)
			}
		}
		cur = cur[:0]
	}

	for _, b := range data {
		switch {
		case b >= 0x20 && b != 0x7f:
			cur = append(cur, b)
		case b == 0x00 || b == '\t' || b == '\n' || b == '\r':
			flush()
		default:
			cur = cur[:0]
		}
	}
	flush()

	return strings.Join(words, " ")
}

// scanPrintableRuns keeps maximal runs of printable ASCII, for producers
// that store text in longer uninterrupted runs without null structure.
func scanPrintableRuns(data []byte) string {
	const minRun = 4
	var parts []string
	var cur []byte

	flush := func() {
		if len(cur) >= minRun {
			s := strings.TrimSpace(string(cur))
			if isLikelyWord(s) {
				parts = append(parts, s)
			}
		}
		cur = cur[:0]
	}

	for _, b := range data {
		if b >= 0x20 && b <= 0x7e {
			cur = append(cur, b)
		} else {
			flush()
		}
	}
	flush()

	return strings.Join(parts, " ")
}

// scanWideChars decodes the buffer as 16-bit little-endian code units.
// Last resort for files whose dominant encoding is wide-character.
func scanWideChars(data []byte) string {
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	decoded, err := dec.Bytes(data)
	if err != nil {
		return ""
	}

	var sb strings.Builder
	for _, r := range string(decoded) {
		if r >= 0x20 && r != 0x7f && r != 0xfffd {
			sb.WriteRune(r)
		} else {
			sb.WriteByte(' ')
		}
	}
	return collapseSpaces(sb.String())
}

// isLikelyWord filters scan tokens that are plainly binary residue: no
// letters at all, a single repeated character, or unrealistic length.
func isLikelyWord(s string) bool {
	if len(s) < 2 || len(s) > 100 {
		return false
	}
	hasLetter := false
	first := rune(-1)
	same := true
	for _, r := range s {
		if isLetter(r) {
			hasLetter = true
		}
		if first == -1 {
			first = r
		} else if r != first {
			same = false
		}
	}
	return hasLetter && !same
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r >= 0x80
}

func decodeLatin1(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		sb.WriteRune(rune(c))
	}
	return sb.String()
}

func collapseSpaces(s string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range s {
		if r == ' ' {
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			prevSpace = true
			continue
		}
		sb.WriteRune(r)
		prevSpace = false
	}
	return strings.TrimSpace(sb.String())
}
