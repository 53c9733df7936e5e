// Package extract converts raw uploaded bytes into normalized plain text.
// Format detection sniffs magic bytes before trusting the declared
// extension: a mislabelled file is routed by what it actually is.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrUnsupportedFormat is returned for extensions and byte signatures the
// pipeline cannot extract text from. The capture fails without retry.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Error is a terminal extraction failure: the input is corrupt or
// unparseable. Since a capture's content is static, extraction failures
// are never retried.
type Error struct {
	Format string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Format, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result holds the normalized text plus document-level metadata.
type Result struct {
	Text      string
	PageCount int
	Format    string
	Meta      map[string]string
}

// Magic-byte signatures.
var (
	pdfMagic = []byte("%PDF-")
	zipMagic = []byte{'P', 'K', 0x03, 0x04}
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0} // legacy OLE compound file (.doc)
)

func hasPrefix(data, magic []byte) bool {
	if len(data) < len(magic) {
		return false
	}
	for i, b := range magic {
		if data[i] != b {
			return false
		}
	}
	return true
}

// Text extracts plain text from raw bytes. The declared name's extension
// is only a fallback for formats without a signature (.txt, .md); byte
// signatures always win, so a legacy .doc uploaded as "report.docx" still
// routes to the legacy extractor.
func Text(data []byte, declaredName string) (*Result, error) {
	if len(data) == 0 {
		return nil, &Error{Format: "input", Err: errors.New("empty file")}
	}

	switch {
	case hasPrefix(data, pdfMagic):
		return extractPDF(data)
	case hasPrefix(data, oleMagic):
		return extractLegacyDoc(data)
	case hasPrefix(data, zipMagic):
		return extractDOCX(data)
	}

	ext := strings.ToLower(filepath.Ext(declaredName))
	switch ext {
	case ".txt", ".md", ".markdown":
		if !utf8.Valid(data) {
			return nil, &Error{Format: "text", Err: errors.New("not valid UTF-8")}
		}
		return &Result{
			Text:   collapseBlankRuns(string(data)),
			Format: "text",
		}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// collapseBlankRuns strips redundant blank-line runs and trims the ends.
func collapseBlankRuns(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
