package extractor

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const sampleDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Editorial guidelines</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Submit your </w:t></w:r><w:r><w:t>manuscript</w:t></w:r></w:p>
    <w:tbl><w:tr><w:tc><w:p><w:r><w:t>cell text</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
  </w:body>
</w:document>`

func TestExtractPlainTextFormats(t *testing.T) {
	e := New(nil)
	for _, name := range []string{"notes.txt", "README.MD", "letter.rtf", "page.html", "page.htm", "data.unknown", "noext"} {
		got, err := e.Extract(name, []byte("<b>hello</b> world"))
		require.NoError(t, err, name)
		assert.Equal(t, "<b>hello</b> world", got, "markup must not be stripped for %s", name)
	}
}

func TestExtractInvalidUTF8IsRepaired(t *testing.T) {
	got := New(nil).ExtractText("a.txt", []byte{'o', 'k', 0xff, '!'})
	assert.Equal(t, "ok�!", got)
}

func TestExtractDocx(t *testing.T) {
	got, err := New(nil).Extract("Guide.DOCX", buildDocx(t, sampleDocumentXML))
	require.NoError(t, err)
	assert.Equal(t, "Editorial guidelines\nSubmit your manuscript\ncell text", got)
}

func TestExtractDocWithZipContainer(t *testing.T) {
	got, err := New(nil).Extract("legacy.doc", buildDocx(t, sampleDocumentXML))
	require.NoError(t, err)
	assert.Contains(t, got, "Editorial guidelines")
}

func TestExtractCorruptDocx(t *testing.T) {
	_, err := New(nil).Extract("broken.docx", []byte("definitely not a zip"))
	require.Error(t, err)

	var xe *ExtractError
	require.True(t, errors.As(err, &xe))
	assert.Equal(t, "docx", xe.Format)
	assert.Equal(t, "broken.docx", xe.Filename)
	assert.ErrorIs(t, err, ErrUnsupportedDocument)
}

func TestExtractCorruptDoc(t *testing.T) {
	e := New(nil)
	_, err := e.Extract("old.doc", []byte("garbage bytes"))
	assert.Error(t, err)
	assert.Equal(t, "", e.ExtractText("old.doc", []byte("garbage bytes")))
}

func TestPDFWithoutParserFailsOpen(t *testing.T) {
	e := New(nil)
	assert.False(t, e.HasPDFParser())

	_, err := e.Extract("paper.pdf", []byte("%PDF-1.4"))
	assert.ErrorIs(t, err, ErrPDFParserUnavailable)
	assert.Equal(t, "", e.ExtractText("paper.pdf", []byte("%PDF-1.4")))
}

func TestPDFUsesInjectedParser(t *testing.T) {
	e := New(PDFParserFunc(func(data []byte) (string, error) {
		return "parsed " + string(data), nil
	}))
	assert.True(t, e.HasPDFParser())
	assert.Equal(t, "parsed body", e.ExtractText("x.pdf", []byte("body")))
}

func TestParserPanicIsRecovered(t *testing.T) {
	e := New(PDFParserFunc(func([]byte) (string, error) {
		panic("malformed xref")
	}))
	var text string
	assert.NotPanics(t, func() { text = e.ExtractText("x.pdf", nil) })
	assert.Equal(t, "", text)
}

func TestCorruptPDFWithRealParser(t *testing.T) {
	e := New(NewPDFParser())
	assert.Equal(t, "", e.ExtractText("bad.pdf", []byte("not a pdf at all")))
}

func TestObserverSeesEveryAttempt(t *testing.T) {
	var formats []string
	var failures int
	e := New(nil, WithObserver(func(format string, _ time.Duration, err error) {
		formats = append(formats, format)
		if err != nil {
			failures++
		}
	}))
	e.ExtractText("a.txt", []byte("x"))
	e.ExtractText("b.pdf", []byte("x"))

	assert.Equal(t, []string{"txt", "pdf"}, formats)
	assert.Equal(t, 1, failures)
}

func TestPrintableRuns(t *testing.T) {
	got := printableRuns("ab\x00\x01Hello world\x02xyz\x03Second run")
	assert.Equal(t, "Hello world Second run", got)
	assert.True(t, strings.HasPrefix(decodeUTF16LE([]byte{'H', 0, 'i', 0}), "Hi"))
}
