package docpipe

import (
	"regexp"
	"strings"
	"unicode"
)

// Quality filter thresholds. A result is usable only when both the length
// and letter-ratio floors hold at once.
const (
	minLineLen     = 3
	minUsableLen   = 50
	minLetterRatio = 0.10

	// Aggressive-mode line cuts.
	aggressiveMinLetterRatio = 0.30
	aggressiveMaxDigitRatio  = 0.50
)

var (
	multiSpaceRe   = regexp.MustCompile(` +`)
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
	spaceNewlineRe = regexp.MustCompile(` +\n`)
	newlineSpaceRe = regexp.MustCompile(`\n +`)
)

// CleanText removes non-textual artifacts from raw extraction output and
// scores the survivor. Applied in order: control bytes become spaces
// (tab/newline/CR stay, they are structure), whitespace runs collapse
// (3+ newlines become exactly two, preserving paragraph breaks), garbage
// lines drop, and aggressive mode additionally cuts lines that are mostly
// symbols or numbers. Cleaning its own output is a no-op.
func CleanText(text string, aggressive bool) *CleanedText {
	if strings.TrimSpace(text) == "" {
		return &CleanedText{}
	}

	t := strings.ReplaceAll(text, "\r\n", "\n")
	t = strings.ReplaceAll(t, "\r", "\n")
	t = stripControl(t)
	t = normalizeWhitespace(t)

	t, dropped := dropGarbageLines(t, aggressive)
	t = strings.TrimSpace(normalizeWhitespace(t))

	length := len([]rune(t))
	ratio := letterRatio(t)

	return &CleanedText{
		Text:         t,
		Usable:       length >= minUsableLen && ratio >= minLetterRatio,
		Length:       length,
		LetterRatio:  ratio,
		LinesDropped: dropped,
	}
}

// stripControl replaces control bytes outside the printable range with
// spaces. Tab, newline and CR are kept; CRs were already normalized away.
func stripControl(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n' || r == '\t':
			sb.WriteRune(r)
		case r < 0x20 || (r >= 0x7f && r < 0xa0) || r == 0xfffd:
			sb.WriteByte(' ')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func normalizeWhitespace(text string) string {
	text = multiSpaceRe.ReplaceAllString(text, " ")
	text = spaceNewlineRe.ReplaceAllString(text, "\n")
	text = newlineSpaceRe.ReplaceAllString(text, "\n")
	text = multiNewlineRe.ReplaceAllString(text, "\n\n")
	return text
}

// dropGarbageLines evaluates each line independently. Empty lines survive
// as paragraph breaks; lines that are too short, letterless, dominated by
// punctuation, or a single repeated character are OCR/binary-scrape noise.
func dropGarbageLines(text string, aggressive bool) (string, int) {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	dropped := 0

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			kept = append(kept, "")
			continue
		}
		if isGarbageLine(trimmed) || (aggressive && isNoiseLine(trimmed)) {
			dropped++
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n"), dropped
}

func isGarbageLine(line string) bool {
	runes := []rune(line)
	if len(runes) < minLineLen {
		return true
	}

	letters := 0
	first := runes[0]
	same := true
	for _, r := range runes {
		if unicode.IsLetter(r) {
			letters++
		}
		if r != first {
			same = false
		}
	}
	if letters == 0 || same {
		return true
	}
	// Dominated by punctuation and symbols rather than letters.
	return float64(len(runes)-letters)/float64(len(runes)) > 0.8
}

// isNoiseLine applies the opt-in aggressive cuts: mostly non-letter, or a
// table of numbers. Can remove legitimate numeric content, hence opt-in.
func isNoiseLine(line string) bool {
	runes := []rune(line)
	letters, digits := 0, 0
	for _, r := range runes {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsDigit(r):
			digits++
		}
	}
	n := float64(len(runes))
	if float64(letters)/n < aggressiveMinLetterRatio {
		return true
	}
	return float64(digits)/n > aggressiveMaxDigitRatio
}

func letterRatio(text string) float64 {
	if text == "" {
		return 0
	}
	letters, total := 0, 0
	for _, r := range text {
		total++
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return float64(letters) / float64(total)
}
