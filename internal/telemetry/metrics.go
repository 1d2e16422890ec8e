package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics. Every Record method is safe on a nil receiver.
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	ExtractionDuration  metric.Float64Histogram
	ScrapeOutcomes      metric.Int64Counter
	SearchRequests      metric.Int64Counter
	PairsProduced       metric.Int64Histogram
	AuditScores         metric.Int64Histogram
	CircuitBreakerState metric.Int64Counter
	DatabaseOperations  metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("mindradix-similarity")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	extractionDuration, err := meter.Float64Histogram(
		"extraction.duration",
		metric.WithDescription("Attachment text extraction duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	scrapeOutcomes, err := meter.Int64Counter(
		"crawler.scrapes.total",
		metric.WithDescription("Web page scrapes by outcome"),
	)
	if err != nil {
		return nil, err
	}

	searchRequests, err := meter.Int64Counter(
		"crawler.searches.total",
		metric.WithDescription("Web searches by provider and outcome"),
	)
	if err != nil {
		return nil, err
	}

	pairsProduced, err := meter.Int64Histogram(
		"similarity.pairs",
		metric.WithDescription("Similarity pairs returned per check"),
	)
	if err != nil {
		return nil, err
	}

	auditScores, err := meter.Int64Histogram(
		"audit.ai_score",
		metric.WithDescription("Heuristic AI score per audited text"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	databaseOperations, err := meter.Int64Counter(
		"database.operations.total",
		metric.WithDescription("Total database operations"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		ExtractionDuration:  extractionDuration,
		ScrapeOutcomes:      scrapeOutcomes,
		SearchRequests:      searchRequests,
		PairsProduced:       pairsProduced,
		AuditScores:         auditScores,
		CircuitBreakerState: circuitBreakerState,
		DatabaseOperations:  databaseOperations,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordExtraction records one attachment extraction
func (m *Metrics) RecordExtraction(format string, duration float64, success bool) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("document.format", format),
		attribute.Bool("extraction.success", success),
	}

	m.ExtractionDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordScrape counts a scrape by outcome (ok, empty, failed, cached, blocked)
func (m *Metrics) RecordScrape(status string) {
	if m == nil {
		return
	}
	m.ScrapeOutcomes.Add(context.Background(), 1, metric.WithAttributes(attribute.String("scrape.status", status)))
}

// RecordSearch counts a web search call
func (m *Metrics) RecordSearch(provider string, success bool) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("search.provider", provider),
		attribute.Bool("search.success", success),
	}

	m.SearchRequests.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordSimilarity records how many pairs a check returned
func (m *Metrics) RecordSimilarity(kind string, pairs int) {
	if m == nil {
		return
	}
	m.PairsProduced.Record(context.Background(), int64(pairs), metric.WithAttributes(attribute.String("report.kind", kind)))
}

// RecordAuditScore records the heuristic AI score of one text
func (m *Metrics) RecordAuditScore(score int) {
	if m == nil {
		return
	}
	m.AuditScores.Record(context.Background(), int64(score))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordDatabaseOperation records database operation metrics
func (m *Metrics) RecordDatabaseOperation(operation, collection string, success bool) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("db.operation", operation),
		attribute.String("db.collection", collection),
		attribute.Bool("db.success", success),
	}

	m.DatabaseOperations.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
