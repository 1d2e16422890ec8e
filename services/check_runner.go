package services

import (
	"context"
	"fmt"

	"mindradix-similarity/internal/logger"
	"mindradix-similarity/models"
)

// CheckRunner executes a queued check against its stored record: it runs
// the check, writes the workbook and records the outcome.
type CheckRunner struct {
	similarity *SimilarityService
	plagiarism *PlagiarismService
	store      ReportStore
	export     *ExportService
}

func NewCheckRunner(sim *SimilarityService, plag *PlagiarismService, store ReportStore, export *ExportService) *CheckRunner {
	return &CheckRunner{similarity: sim, plagiarism: plag, store: store, export: export}
}

// Run processes record id. Failures are written to the record before being
// returned so the caller can decide whether to retry.
func (r *CheckRunner) Run(ctx context.Context, id, kind string, req PlagiarismRequest) error {
	if err := r.store.MarkProcessing(ctx, id); err != nil {
		return fmt.Errorf("failed to mark report %s processing: %w", id, err)
	}

	var result ReportResult
	switch kind {
	case models.ReportKindSimilarity:
		result.Similarity = r.similarity.RunSimilarityCheck(ctx, req.SimilarityRequest)
	case models.ReportKindPlagiarism:
		result.Plagiarism = r.plagiarism.RunPlagiarismCheck(ctx, req)
	default:
		err := fmt.Errorf("unknown report kind %q", kind)
		_ = r.store.Fail(ctx, id, err.Error())
		return err
	}
	result.Summary = Summary(result, ClampThreshold(req.Threshold), ClampTopN(req.TopN))

	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to reload report %s: %w", id, err)
	}
	rec.Similarity = result.Similarity
	rec.Plagiarism = result.Plagiarism
	rec.SimilaritySummary = result.Summary

	path, err := r.export.Save(rec)
	if err != nil {
		// The report itself is still usable without its workbook.
		logger.Error("Failed to export report", "id", id, "error", err)
	}
	result.StoragePath = path

	if err := r.store.Complete(ctx, id, result); err != nil {
		return fmt.Errorf("failed to complete report %s: %w", id, err)
	}
	logger.Info("Report completed", "id", id, "kind", kind, "article_id", rec.ArticleID)
	return nil
}
