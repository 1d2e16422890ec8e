package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

var zipMagic = []byte("PK\x03\x04")

// docxBody mirrors the parts of word/document.xml that carry text.
type docxBody struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
		Tables     []struct {
			Rows []struct {
				Cells []struct {
					Paragraphs []docxParagraph `xml:"p"`
				} `xml:"tc"`
			} `xml:"tr"`
		} `xml:"tbl"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Text []struct {
			Content string `xml:",chardata"`
		} `xml:"t"`
	} `xml:"r"`
}

func (p docxParagraph) text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		for _, t := range r.Text {
			b.WriteString(t.Content)
		}
	}
	return b.String()
}

// extractDocx reads paragraph text from word/document.xml. Table cell text is
// appended after body paragraphs; formatting and images are discarded.
func extractDocx(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: not a zip container: %v", ErrUnsupportedDocument, err)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read document.xml: %w", err)
		}

		var doc docxBody
		if err := xml.Unmarshal(content, &doc); err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}

		var lines []string
		for _, p := range doc.Body.Paragraphs {
			lines = append(lines, p.text())
		}
		for _, tbl := range doc.Body.Tables {
			for _, row := range tbl.Rows {
				for _, cell := range row.Cells {
					for _, p := range cell.Paragraphs {
						lines = append(lines, p.text())
					}
				}
			}
		}
		return strings.TrimSpace(strings.Join(lines, "\n")), nil
	}

	return "", fmt.Errorf("%w: word/document.xml missing", ErrUnsupportedDocument)
}
