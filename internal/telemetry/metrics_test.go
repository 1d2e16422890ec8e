package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("GET", "/health", "200", 0.01)
		m.RecordExtraction("pdf", 0.2, false)
		m.RecordScrape("ok")
		m.RecordSearch("duckduckgo", true)
		m.RecordSimilarity("similarity", 3)
		m.RecordAuditScore(42)
		m.RecordCircuitBreakerState("search", "open")
		m.RecordDatabaseOperation("insert", "similarity_reports", true)
	})
}

func TestInitMetricsWithGlobalProvider(t *testing.T) {
	m, err := InitMetrics()
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		m.RecordScrape("failed")
		m.RecordSimilarity("plagiarism", 0)
	})
	assert.NotNil(t, Tracer())
}
