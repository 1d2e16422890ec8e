package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize collapses whitespace, trims, and caps the result at max characters.
// A max of zero or less means no cap.
func Normalize(text string, max int) string {
	text = strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	return Truncate(text, max)
}

// Truncate returns at most n characters of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Excerpt returns the first n characters of an already normalized text.
func Excerpt(text string, n int) string {
	return Truncate(text, n)
}

// StripHTML returns the visible text of an HTML fragment such as an article body.
// Plain text passes through unchanged apart from whitespace handling.
func StripHTML(content string) string {
	if !strings.ContainsAny(content, "<>&") {
		return content
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	doc.Find("script, style, noscript").Remove()
	return SelectionText(doc.Selection)
}

const blockElements = "p, div, br, li, h1, h2, h3, h4, h5, h6, tr, td, th, blockquote, section, article, pre"

// SelectionText returns the text of sel with block elements separated by
// spaces, so adjacent paragraphs do not run together. sel is modified.
func SelectionText(sel *goquery.Selection) string {
	sel.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AppendNodes(&html.Node{Type: html.TextNode, Data: " "})
	})
	return sel.Text()
}
