package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"mindradix-similarity/internal/logger"
)

// LedongthucParser extracts the plain text layer of a PDF page by page.
type LedongthucParser struct{}

func NewPDFParser() *LedongthucParser {
	return &LedongthucParser{}
}

func (p *LedongthucParser) ParsePDF(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var textBuilder strings.Builder
	pages := reader.NumPage()

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Debug("Failed to extract PDF page", "page", i, "error", err)
			continue
		}

		if textBuilder.Len() > 0 {
			textBuilder.WriteString("\n")
		}
		textBuilder.WriteString(text)
	}

	return textBuilder.String(), nil
}
