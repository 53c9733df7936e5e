package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// extractPDF parses text content per page and returns the concatenated
// text with the page count and document info metadata.
func extractPDF(data []byte) (result *Result, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &Error{Format: "pdf", Err: fmt.Errorf("corrupt structure: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &Error{Format: "pdf", Err: err}
	}

	pageCount := reader.NumPage()
	var sb strings.Builder
	extracted := 0

	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page doesn't fail the document.
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
		extracted++
	}

	if extracted == 0 {
		return nil, &Error{Format: "pdf", Err: errors.New("no extractable text")}
	}

	return &Result{
		Text:      collapseBlankRuns(sb.String()),
		PageCount: pageCount,
		Format:    "pdf",
		Meta:      pdfInfo(reader),
	}, nil
}

// pdfInfo pulls title/author/producer from the document info dictionary.
func pdfInfo(reader *pdf.Reader) map[string]string {
	defer func() { recover() }() // info dictionaries in the wild are often broken

	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return nil
	}

	meta := make(map[string]string)
	for _, key := range []string{"Title", "Author", "Producer", "CreationDate"} {
		v := info.Key(key)
		if v.Kind() == pdf.String {
			if s := strings.TrimSpace(v.RawString()); s != "" {
				meta[strings.ToLower(key)] = s
			}
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
