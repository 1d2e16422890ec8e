package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"mindradix-similarity/internal/audit"
	"mindradix-similarity/internal/logger"
	"mindradix-similarity/internal/similarity"
	"mindradix-similarity/internal/telemetry"
	"mindradix-similarity/models"
)

// PlagiarismRequest extends a similarity request with an optional report
// from an external plagiarism provider, passed through unchanged.
type PlagiarismRequest struct {
	SimilarityRequest
	ExternalReport map[string]interface{}
}

// PlagiarismService merges the heuristic audit of an article with its
// similarity figures.
type PlagiarismService struct {
	similarity *SimilarityService
	auditor    *audit.Auditor
	metrics    *telemetry.Metrics
}

func NewPlagiarismService(sim *SimilarityService, auditor *audit.Auditor, metrics *telemetry.Metrics) *PlagiarismService {
	return &PlagiarismService{similarity: sim, auditor: auditor, metrics: metrics}
}

func (s *PlagiarismService) RunPlagiarismCheck(ctx context.Context, req PlagiarismRequest) *models.PlagiarismReport {
	ctx, span := telemetry.Tracer().Start(ctx, "plagiarism.check")
	defer span.End()

	all, own := s.similarity.BuildDocuments(ctx, req.SimilarityRequest)

	_, auditSpan := telemetry.Tracer().Start(ctx, "plagiarism.audit")
	result := s.auditor.AuditText(combinedText(own))
	auditSpan.SetAttributes(
		attribute.Int("audit.ai_score", result.AIScore),
		attribute.Int("audit.web_score", result.WebScore),
	)
	auditSpan.End()
	s.metrics.RecordAuditScore(result.AIScore)

	sim, allPairs := s.similarity.rank(ctx, all, req.Threshold, req.TopN)

	report := &models.PlagiarismReport{
		HeuristicAuditResult: result,
		Pairs:                sim.Pairs,
		Docs:                 sim.Docs,
		External:             req.ExternalReport,
	}
	if len(allPairs) > 0 {
		maxScore, avgScore := pairStats(allPairs)
		report.MaxSimilarity = &maxScore
		report.AvgSimilarity = &avgScore
	}

	s.metrics.RecordSimilarity(models.ReportKindPlagiarism, len(sim.Pairs))
	logger.Info("Plagiarism check finished",
		"article_id", req.ArticleID,
		"ai_score", result.AIScore,
		"web_score", result.WebScore,
		"pairs", len(sim.Pairs),
	)
	return report
}

// combinedText joins attachment text ahead of the article body, the order
// the audit has always read them in.
func combinedText(own []models.Document) string {
	var body string
	parts := make([]string, 0, len(own))
	for _, d := range own {
		if d.ID == models.MainContentID {
			body = d.Text
			continue
		}
		if d.Text != "" {
			parts = append(parts, d.Text)
		}
	}
	if body != "" {
		parts = append(parts, body)
	}
	return strings.Join(parts, "\n\n")
}

func pairStats(pairs []models.SimilarityPair) (float64, float64) {
	var maxScore, sum float64
	for _, p := range pairs {
		if p.Score > maxScore {
			maxScore = p.Score
		}
		sum += p.Score
	}
	return maxScore, similarity.Round4(sum / float64(len(pairs)))
}
