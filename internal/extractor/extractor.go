package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"mindradix-similarity/internal/logger"
)

var (
	// ErrPDFParserUnavailable is returned for PDF input when no parser was injected.
	ErrPDFParserUnavailable = errors.New("pdf parser unavailable")
	// ErrUnsupportedDocument is returned when a container is not the format its extension claims.
	ErrUnsupportedDocument = errors.New("unsupported document")
)

// PDFParser turns raw PDF bytes into plain text.
type PDFParser interface {
	ParsePDF(data []byte) (string, error)
}

// PDFParserFunc adapts a function to PDFParser.
type PDFParserFunc func(data []byte) (string, error)

func (f PDFParserFunc) ParsePDF(data []byte) (string, error) { return f(data) }

// ExtractError describes why a single attachment produced no text.
type ExtractError struct {
	Filename string
	Format   string
	Err      error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.Filename, e.Format, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// Observer is notified after every extraction attempt.
type Observer func(format string, elapsed time.Duration, err error)

// Extractor converts attachment bytes to plain text based on the file extension.
type Extractor struct {
	pdf      PDFParser
	observer Observer
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithObserver registers a callback, typically a metrics recorder.
func WithObserver(o Observer) Option {
	return func(e *Extractor) { e.observer = o }
}

// New creates an extractor. A nil parser means PDFs extract to "".
func New(pdf PDFParser, opts ...Option) *Extractor {
	e := &Extractor{pdf: pdf}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HasPDFParser reports whether PDF extraction is available.
func (e *Extractor) HasPDFParser() bool {
	return e.pdf != nil
}

// Format returns the lower-cased extension of filename without the dot.
func Format(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// Extract returns the text of a document or an *ExtractError.
// Parser panics on malformed input are recovered and reported as errors.
func (e *Extractor) Extract(filename string, data []byte) (text string, err error) {
	format := Format(filename)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("parser panic: %v", r)
		}
		if err != nil {
			var xe *ExtractError
			if !errors.As(err, &xe) {
				err = &ExtractError{Filename: filename, Format: format, Err: err}
			}
		}
		if e.observer != nil {
			e.observer(format, time.Since(start), err)
		}
	}()

	switch format {
	case "pdf":
		if e.pdf == nil {
			return "", ErrPDFParserUnavailable
		}
		return e.pdf.ParsePDF(data)
	case "docx":
		return extractDocx(data)
	case "doc":
		// Word 2007+ files saved with a .doc name are still zip containers.
		if bytes.HasPrefix(data, zipMagic) {
			return extractDocx(data)
		}
		return extractDoc(data)
	default:
		// txt, md, rtf, html, htm and anything unknown. Markup is kept as is.
		return decodeUTF8(data), nil
	}
}

// ExtractText never fails: any extraction error is logged and mapped to "".
func (e *Extractor) ExtractText(filename string, data []byte) string {
	text, err := e.Extract(filename, data)
	if err != nil {
		if errors.Is(err, ErrPDFParserUnavailable) {
			logger.Warn("PDF parser not available, skipping attachment", "filename", filename)
		} else {
			logger.Warn("Text extraction failed", "filename", filename, "error", err)
		}
		return ""
	}
	return text
}

func decodeUTF8(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "�")
}
