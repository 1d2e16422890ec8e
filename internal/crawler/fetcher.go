package crawler

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"mindradix-similarity/internal/config"
	"mindradix-similarity/internal/logger"
	"mindradix-similarity/internal/telemetry"
	"mindradix-similarity/models"
)

// Fetcher runs the web corroboration pass: one search, then a concurrent
// scrape of every result. Failures never propagate; they shrink the result.
type Fetcher struct {
	searcher Searcher
	scraper  *Scraper
}

func NewFetcher(searcher Searcher, scraper *Scraper) *Fetcher {
	return &Fetcher{searcher: searcher, scraper: scraper}
}

// NewFetcherFromConfig wires the scraper, renderer and cache from cfg.
// cache and metrics may be nil.
func NewFetcherFromConfig(cfg *config.Config, searcher Searcher, cache PageCache, metrics *telemetry.Metrics) *Fetcher {
	scraper := NewScraper(cfg.ScrapeTimeout, cfg.ScrapeMaxChars)
	scraper.MinChars = cfg.WebMinChars
	scraper.Cache = cache
	scraper.Metrics = metrics
	if cfg.RenderJS {
		scraper.Renderer = NewChromeRenderer(cfg.RenderTimeout)
	}
	return NewFetcher(searcher, scraper)
}

// Search returns up to the searcher's limit of URLs, or nil on failure.
func (f *Fetcher) Search(ctx context.Context, query string) []string {
	query = strings.TrimSpace(query)
	if query == "" || f.searcher == nil {
		return nil
	}
	urls, err := f.searcher.Search(ctx, query)
	if err != nil {
		logger.Warn("Web search failed", "query", query, "error", err)
		return nil
	}
	return urls
}

// ScrapeAll scrapes urls concurrently. Each scrape is isolated: a failed page
// becomes an empty result and is dropped, the rest are returned in input order.
func (f *Fetcher) ScrapeAll(ctx context.Context, urls []string) []models.WebDocument {
	texts := make([]string, len(urls))

	// Tasks never return an error, so one failure cannot cancel its siblings.
	var g errgroup.Group
	for i, u := range urls {
		g.Go(func() error {
			texts[i] = f.scraper.Scrape(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	docs := make([]models.WebDocument, 0, len(urls))
	for i, text := range texts {
		if text != "" {
			docs = append(docs, models.WebDocument{URL: urls[i], Text: text})
		}
	}
	return docs
}

// Corroborate searches for query and scrapes the results.
func (f *Fetcher) Corroborate(ctx context.Context, query string) []models.WebDocument {
	urls := f.Search(ctx, query)
	if len(urls) == 0 {
		return nil
	}
	docs := f.ScrapeAll(ctx, urls)
	logger.Debug("Web corroboration finished", "query", query, "urls", len(urls), "pages", len(docs))
	return docs
}
