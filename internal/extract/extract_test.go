package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

// buildDOCX assembles a minimal XML-zip Word document in memory.
func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := f.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

const docXML = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph of the report.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second paragraph</w:t></w:r><w:r><w:t xml:space="preserve"> continues here.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestTextDOCX(t *testing.T) {
	data := buildDOCX(t, docXML)

	result, err := Text(data, "report.docx")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if result.Format != "docx" {
		t.Errorf("format = %q, want docx", result.Format)
	}
	if !strings.Contains(result.Text, "First paragraph of the report.") {
		t.Errorf("missing first paragraph: %q", result.Text)
	}
	if !strings.Contains(result.Text, "Second paragraph continues here.") {
		t.Errorf("runs not joined within paragraph: %q", result.Text)
	}
}

func TestTextLegacyDocSniffedOverExtension(t *testing.T) {
	// An OLE compound file mislabelled .docx must route by signature, not
	// extension.
	prose := "This is the body text of a legacy word processor document."
	data := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, make([]byte, 64)...)
	data = append(data, []byte(prose)...)
	data = append(data, 0x00, 0x01)

	result, err := Text(data, "report.docx")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if result.Format != "doc" {
		t.Errorf("format = %q, want doc (signature wins over extension)", result.Format)
	}
	if !strings.Contains(result.Text, prose) {
		t.Errorf("body text missing: %q", result.Text)
	}
}

func TestTextLegacyDocNoProse(t *testing.T) {
	// Pure binary noise after the signature: terminal extraction error.
	data := append([]byte{0xD0, 0xCF, 0x11, 0xE0}, bytes.Repeat([]byte{0x01, 0x02, 0x03}, 50)...)

	_, err := Text(data, "old.doc")
	var exErr *Error
	if !errors.As(err, &exErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if exErr.Format != "doc" {
		t.Errorf("format = %q, want doc", exErr.Format)
	}
}

func TestTextPlain(t *testing.T) {
	in := "Line one.\r\n\r\n\r\n\r\nLine two.\n"
	result, err := Text([]byte(in), "notes.txt")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	want := "Line one.\n\nLine two."
	if result.Text != want {
		t.Errorf("text = %q, want %q", result.Text, want)
	}
}

func TestTextMarkdown(t *testing.T) {
	result, err := Text([]byte("# Title\n\nBody."), "README.md")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if result.Format != "text" {
		t.Errorf("format = %q, want text", result.Format)
	}
}

func TestTextInvalidUTF8(t *testing.T) {
	_, err := Text([]byte{0xFF, 0xFE, 0x41}, "notes.txt")
	var exErr *Error
	if !errors.As(err, &exErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
}

func TestTextUnsupported(t *testing.T) {
	_, err := Text([]byte("binary-ish"), "video.mp4")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestTextEmpty(t *testing.T) {
	_, err := Text(nil, "anything.txt")
	var exErr *Error
	if !errors.As(err, &exErr) {
		t.Fatalf("err = %v, want *Error for empty input", err)
	}
}

func TestTextCorruptPDF(t *testing.T) {
	// Valid signature, garbage body: the parser must fail cleanly, not
	// panic.
	data := append([]byte("%PDF-1.7\n"), bytes.Repeat([]byte{0xAB}, 100)...)

	_, err := Text(data, "paper.pdf")
	var exErr *Error
	if !errors.As(err, &exErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if exErr.Format != "pdf" {
		t.Errorf("format = %q, want pdf", exErr.Format)
	}
}

func TestTextZipWithoutDocument(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, _ := zw.Create("random.txt")
	f.Write([]byte("not a word file"))
	zw.Close()

	_, err := Text(buf.Bytes(), "archive.docx")
	var exErr *Error
	if !errors.As(err, &exErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
}

func TestCollapseBlankRuns(t *testing.T) {
	in := "a\r\n\r\n\r\n\r\nb\n\n\n\n\nc\n"
	if got := collapseBlankRuns(in); got != "a\n\nb\n\nc" {
		t.Errorf("collapseBlankRuns = %q", got)
	}
}
