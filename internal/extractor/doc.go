package extractor

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
)

// minRun is the shortest printable run kept when scanning a binary stream.
const minRun = 4

// extractDoc recovers text from a Word 97-2003 binary document. It reads the
// WordDocument stream out of the compound file and keeps printable runs,
// trying both UTF-16LE and 8-bit encodings and returning the richer one.
func extractDoc(data []byte) (string, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: not a compound file: %v", ErrUnsupportedDocument, err)
	}

	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if entry.Name != "WordDocument" {
			continue
		}
		stream, err := io.ReadAll(entry)
		if err != nil {
			return "", fmt.Errorf("read WordDocument stream: %w", err)
		}

		wide := printableRuns(decodeUTF16LE(stream))
		narrow := printableRuns(string(bytes.ToValidUTF8(stream, []byte{0})))
		if len(wide) >= len(narrow) {
			return wide, nil
		}
		return narrow, nil
	}

	return "", fmt.Errorf("%w: WordDocument stream missing", ErrUnsupportedDocument)
}

func decodeUTF16LE(b []byte) string {
	u := make([]uint16, len(b)/2)
	for i := range u {
		u[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return string(utf16.Decode(u))
}

func printableRuns(s string) string {
	var out, run strings.Builder
	n := 0
	flush := func() {
		if n >= minRun {
			if out.Len() > 0 {
				out.WriteByte(' ')
			}
			out.WriteString(strings.TrimSpace(run.String()))
		}
		run.Reset()
		n = 0
	}
	for _, r := range s {
		if r == '\r' || r == '\n' || r == '\t' {
			r = ' '
		}
		if r != unicode.ReplacementChar && (unicode.IsPrint(r) || r == ' ') {
			run.WriteRune(r)
			n++
			continue
		}
		flush()
	}
	flush()
	return strings.TrimSpace(out.String())
}
