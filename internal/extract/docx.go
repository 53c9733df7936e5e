package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// extractDOCX reads a modern XML-zip Word document: text lives in
// word/document.xml as <w:t> runs grouped into <w:p> paragraphs.
func extractDOCX(data []byte) (*Result, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &Error{Format: "docx", Err: err}
	}

	var docXML []byte
	for _, f := range reader.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, &Error{Format: "docx", Err: err}
		}
		docXML, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, &Error{Format: "docx", Err: err}
		}
		break
	}
	if docXML == nil {
		return nil, &Error{Format: "docx", Err: errors.New("zip has no word/document.xml")}
	}

	text, err := parseDocumentXML(docXML)
	if err != nil {
		return nil, &Error{Format: "docx", Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &Error{Format: "docx", Err: errors.New("no extractable text")}
	}

	return &Result{
		Text:   collapseBlankRuns(text),
		Format: "docx",
		Meta:   docxCoreMeta(reader),
	}, nil
}

// parseDocumentXML walks the token stream collecting w:t character data,
// emitting newlines at paragraph ends and tabs/breaks inline.
func parseDocumentXML(docXML []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(docXML))
	var sb strings.Builder
	inText := false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

// docxCoreMeta reads the title from docProps/core.xml if present.
func docxCoreMeta(reader *zip.Reader) map[string]string {
	for _, f := range reader.File {
		if f.Name != "docProps/core.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil
		}

		var core struct {
			Title   string `xml:"title"`
			Creator string `xml:"creator"`
		}
		if err := xml.Unmarshal(raw, &core); err != nil {
			return nil
		}

		meta := make(map[string]string)
		if core.Title != "" {
			meta["title"] = core.Title
		}
		if core.Creator != "" {
			meta["author"] = core.Creator
		}
		if len(meta) == 0 {
			return nil
		}
		return meta
	}
	return nil
}
