package models

import "time"

// WebDocument is a scraped page used as corroboration material.
type WebDocument struct {
	URL  string `json:"url" bson:"url"`
	Text string `json:"text" bson:"text"`
}

// ScrapedPage records a single scrape attempt.
type ScrapedPage struct {
	URL        string    `json:"url"`
	Text       string    `json:"text"`
	StatusCode int       `json:"status_code"`
	Rendered   bool      `json:"rendered,omitempty"`
	Cached     bool      `json:"cached,omitempty"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Scrape outcomes reported to metrics
const (
	ScrapeStatusOK      = "ok"
	ScrapeStatusEmpty   = "empty"
	ScrapeStatusFailed  = "failed"
	ScrapeStatusCached  = "cached"
	ScrapeStatusBlocked = "blocked"
)
