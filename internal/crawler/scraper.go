package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	colly "github.com/gocolly/colly/v2"
	"golang.org/x/net/html/charset"

	"mindradix-similarity/internal/extractor"
	"mindradix-similarity/internal/logger"
	"mindradix-similarity/internal/telemetry"
	"mindradix-similarity/models"
)

const (
	DefaultScrapeTimeout = 5 * time.Second
	DefaultMaxChars      = 10000
	DefaultMinChars      = 100
)

// hiddenSelectors never contribute visible page text.
const hiddenSelectors = "script, style, nav, header, footer, noscript"

// ErrNoContent is returned when a page responds but carries no visible text.
var ErrNoContent = errors.New("page has no visible text")

// Scraper fetches one page and reduces it to collapsed visible text.
type Scraper struct {
	Timeout  time.Duration
	MaxChars int
	// MinChars is the length under which the Renderer, if any, is tried.
	MinChars int
	Renderer Renderer
	Cache    PageCache
	Metrics  *telemetry.Metrics
}

func NewScraper(timeout time.Duration, maxChars int) *Scraper {
	if timeout <= 0 {
		timeout = DefaultScrapeTimeout
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Scraper{Timeout: timeout, MaxChars: maxChars, MinChars: DefaultMinChars}
}

// Scrape returns the visible text of rawURL, or "" on any failure.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) string {
	page, err := s.Fetch(ctx, rawURL)
	if err != nil {
		logger.Debug("Scrape failed", "url", rawURL, "status", page.StatusCode, "error", err)
		return ""
	}
	return page.Text
}

// Fetch scrapes rawURL and reports how the text was obtained.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) (models.ScrapedPage, error) {
	page := models.ScrapedPage{URL: rawURL, FetchedAt: time.Now()}

	if s.Cache != nil {
		if text, ok := s.Cache.Get(ctx, rawURL); ok {
			page.Text = text
			page.Cached = true
			s.Metrics.RecordScrape(models.ScrapeStatusCached)
			return page, nil
		}
	}

	text, status, err := s.collect(ctx, rawURL)
	page.StatusCode = status
	if err != nil {
		if status == http.StatusForbidden || status == http.StatusTooManyRequests {
			s.Metrics.RecordScrape(models.ScrapeStatusBlocked)
		} else {
			s.Metrics.RecordScrape(models.ScrapeStatusFailed)
		}
		return page, err
	}

	if s.Renderer != nil && utf8.RuneCountInString(text) < s.MinChars {
		if html, rerr := s.Renderer.Render(ctx, rawURL); rerr == nil {
			if rendered := visibleTextFromHTML(html); len(rendered) > len(text) {
				text = rendered
				page.Rendered = true
			}
		} else {
			logger.Debug("JS render failed", "url", rawURL, "error", rerr)
		}
	}

	page.Text = extractor.Normalize(text, s.MaxChars)
	if page.Text == "" {
		s.Metrics.RecordScrape(models.ScrapeStatusEmpty)
		return page, ErrNoContent
	}

	s.Metrics.RecordScrape(models.ScrapeStatusOK)
	if s.Cache != nil {
		s.Cache.Set(ctx, rawURL, page.Text)
	}
	return page, nil
}

// collect runs a single-page colly visit bound to ctx and the scrape timeout.
func (s *Scraper) collect(ctx context.Context, rawURL string) (string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.UserAgent(browserUserAgent),
	)
	c.SetRequestTimeout(s.Timeout)

	var (
		text     string
		status   int
		visitErr error
	)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		r.Headers.Set("Accept-Encoding", "gzip, br")
		r.Headers.Set("Upgrade-Insecure-Requests", "1")
	})

	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		r.Body = decodeBody(r.Body, r.Headers.Get("Content-Encoding"), r.Headers.Get("Content-Type"))
	})

	c.OnHTML("html", func(e *colly.HTMLElement) {
		text = visibleText(e.DOM)
	})

	c.OnError(func(r *colly.Response, err error) {
		status = r.StatusCode
		visitErr = err
	})

	if err := c.Visit(rawURL); err != nil && visitErr == nil {
		visitErr = err
	}
	c.Wait()

	if visitErr != nil {
		return "", status, fmt.Errorf("visit %s: %w", rawURL, visitErr)
	}
	return text, status, nil
}

// decodeBody undoes brotli transfer compression and transcodes non-UTF-8 pages.
// gzip is already handled by the collector.
func decodeBody(body []byte, contentEncoding, contentType string) []byte {
	if strings.Contains(contentEncoding, "br") {
		if decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body))); err == nil {
			body = decompressed
		}
	}
	if len(body) == 0 || utf8.Valid(body) {
		return body
	}
	utf8Reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body
	}
	if decoded, err := io.ReadAll(utf8Reader); err == nil && len(decoded) > 0 {
		return decoded
	}
	return body
}

// visibleText returns the text of the page body with non-content elements removed.
func visibleText(selection *goquery.Selection) string {
	doc := selection.Clone()
	doc.Find(hiddenSelectors).Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		return extractor.SelectionText(doc)
	}
	return extractor.SelectionText(body)
}

func visibleTextFromHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return visibleText(doc.Selection)
}
