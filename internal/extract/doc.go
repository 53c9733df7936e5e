package extract

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf16"
)

// extractLegacyDoc pulls text out of a legacy binary Word file (OLE
// compound document, signature D0 CF 11 E0). Rather than parse the full
// compound-file allocation tables, it scans the byte stream for printable
// ASCII and UTF-16LE runs — the WordDocument stream stores body text in
// those encodings, and the run-length filter drops structural noise.
func extractLegacyDoc(data []byte) (*Result, error) {
	const minRun = 8 // shorter runs are almost always field codes or noise

	var parts []string
	for _, run := range append(asciiRuns(data, minRun), utf16Runs(data, minRun)...) {
		if looksLikeProse(run) {
			parts = append(parts, run)
		}
	}

	if len(parts) == 0 {
		return nil, &Error{Format: "doc", Err: errors.New("no extractable text")}
	}

	return &Result{
		Text:   collapseBlankRuns(strings.Join(parts, "\n")),
		Format: "doc",
	}, nil
}

// asciiRuns collects maximal runs of printable single-byte characters.
func asciiRuns(data []byte, minRun int) []string {
	var runs []string
	var current []byte
	flush := func() {
		if len(current) >= minRun {
			runs = append(runs, strings.TrimSpace(string(current)))
		}
		current = current[:0]
	}

	for _, b := range data {
		if b == '\r' {
			b = '\n'
		}
		if b == '\n' || b == '\t' || (b >= 0x20 && b <= 0x7E) {
			current = append(current, b)
		} else {
			flush()
		}
	}
	flush()
	return runs
}

// utf16Runs collects maximal runs of printable UTF-16LE code units.
func utf16Runs(data []byte, minRun int) []string {
	var runs []string
	var current []uint16
	flush := func() {
		if len(current) >= minRun {
			runs = append(runs, strings.TrimSpace(string(utf16.Decode(current))))
		}
		current = current[:0]
	}

	for i := 0; i+1 < len(data); i += 2 {
		u := uint16(data[i]) | uint16(data[i+1])<<8
		r := rune(u)
		if r == '\r' {
			r = '\n'
			u = '\n'
		}
		// Printable BMP characters only; high bytes of ASCII text decode
		// as NULs and break the run, which keeps pure-ASCII regions out.
		if r == '\n' || r == '\t' || (unicode.IsPrint(r) && r > 0x1F && r < 0xD800) {
			current = append(current, u)
		} else {
			flush()
		}
	}
	flush()
	return runs
}

// looksLikeProse filters extracted runs down to ones that plausibly carry
// body text: mostly letters with word spacing.
func looksLikeProse(s string) bool {
	if len(s) < 8 {
		return false
	}
	letters, spaces := 0, 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
		}
		if r == ' ' || r == '\n' {
			spaces++
		}
	}
	total := len([]rune(s))
	return float64(letters)/float64(total) > 0.5 && spaces > 0
}
