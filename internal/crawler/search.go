package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"mindradix-similarity/internal/config"
	"mindradix-similarity/internal/logger"
	"mindradix-similarity/internal/telemetry"
)

// DefaultResultLimit is how many URLs a search yields at most.
const DefaultResultLimit = 5

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Searcher returns candidate URLs for a query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// NewSearcher picks Google Programmable Search when credentials are configured
// and DuckDuckGo otherwise, guarded by a circuit breaker and a rate limiter.
func NewSearcher(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (Searcher, error) {
	limit := cfg.SearchResultLimit
	if limit <= 0 {
		limit = DefaultResultLimit
	}

	if cfg.UseGoogleSearch() {
		g, err := NewGoogleSearcher(ctx, cfg.GoogleSearchEngineID, limit, option.WithAPIKey(cfg.GoogleSearchAPIKey))
		if err != nil {
			return nil, err
		}
		return NewGuardedSearcher("google", g, cfg.SearchRatePerSecond, metrics), nil
	}

	ddg := NewDuckDuckGoSearcher("", limit)
	return NewGuardedSearcher("duckduckgo", ddg, cfg.SearchRatePerSecond, metrics), nil
}

// GoogleSearcher queries the Custom Search JSON API.
type GoogleSearcher struct {
	svc   *customsearch.Service
	cx    string
	limit int
}

func NewGoogleSearcher(ctx context.Context, engineID string, limit int, opts ...option.ClientOption) (*GoogleSearcher, error) {
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create custom search client: %w", err)
	}
	return &GoogleSearcher{svc: svc, cx: engineID, limit: limit}, nil
}

func (g *GoogleSearcher) Search(ctx context.Context, query string) ([]string, error) {
	// Ask for a few extra results; video hits are filtered out afterwards.
	num := int64(g.limit * 2)
	if num > 10 {
		num = 10
	}
	res, err := g.svc.Cse.List().Cx(g.cx).Q(query).Num(num).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("custom search failed: %w", err)
	}

	links := make([]string, 0, len(res.Items))
	for _, item := range res.Items {
		links = append(links, item.Link)
	}
	return filterResults(links, g.limit), nil
}

// DuckDuckGoSearcher scrapes the keyless HTML results page.
type DuckDuckGoSearcher struct {
	BaseURL string
	Client  *http.Client
	limit   int
}

func NewDuckDuckGoSearcher(baseURL string, limit int) *DuckDuckGoSearcher {
	if baseURL == "" {
		baseURL = "https://html.duckduckgo.com"
	}
	return &DuckDuckGoSearcher{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
		limit:   limit,
	}
}

func (d *DuckDuckGoSearcher) Search(ctx context.Context, query string) ([]string, error) {
	endpoint := d.BaseURL + "/html/?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}

	var links []string
	doc.Find("a.result__a").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			if link := resolveDuckDuckGoLink(href); link != "" {
				links = append(links, link)
			}
		}
	})
	return filterResults(links, d.limit), nil
}

// resolveDuckDuckGoLink unwraps the //duckduckgo.com/l/?uddg=<target> redirect.
func resolveDuckDuckGoLink(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	if strings.HasSuffix(parsed.Hostname(), "duckduckgo.com") {
		return ""
	}
	return href
}

// GuardedSearcher rate limits a searcher and trips a circuit breaker after
// repeated provider failures.
type GuardedSearcher struct {
	name    string
	next    Searcher
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	metrics *telemetry.Metrics
}

func NewGuardedSearcher(name string, next Searcher, perSecond float64, metrics *telemetry.Metrics) *GuardedSearcher {
	if perSecond <= 0 {
		perSecond = 1
	}
	g := &GuardedSearcher{
		name:    name,
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 2),
		metrics: metrics,
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "search-" + name,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			g.metrics.RecordCircuitBreakerState(name, to.String())
		},
	})
	return g
}

func (g *GuardedSearcher) Search(ctx context.Context, query string) ([]string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("search rate limit wait: %w", err)
	}

	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.next.Search(ctx, query)
	})
	g.metrics.RecordSearch(g.name, err == nil)
	if err != nil {
		return nil, err
	}
	return res.([]string), nil
}

// State exposes the breaker state for health reporting.
func (g *GuardedSearcher) State() string {
	return g.breaker.State().String()
}
