package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"mindradix-similarity/internal/audit"
	"mindradix-similarity/internal/scheduler"
	"mindradix-similarity/models"
)

func TestMemoryReportStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReportStore()

	rec, err := store.Create(ctx, "article-1", models.ReportKindSimilarity)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, models.ReportStatusPending, rec.Status)

	require.NoError(t, store.MarkProcessing(ctx, rec.ID))
	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusProcessing, got.Status)

	report := &models.SimilarityReport{Status: models.SimilarityStatusOK}
	require.NoError(t, store.Complete(ctx, rec.ID, ReportResult{
		Similarity:  report,
		Summary:     map[string]interface{}{"pairs": 0},
		StoragePath: "/tmp/x.xlsx",
	}))
	got, err = store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusCompleted, got.Status)
	assert.Equal(t, "/tmp/x.xlsx", got.ReportStoragePath)
	assert.NotNil(t, got.CompletedAt)
	assert.Same(t, report, got.Similarity)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrReportNotFound)
	assert.ErrorIs(t, store.Fail(ctx, "missing", "boom"), ErrReportNotFound)
}

func TestMemoryReportStoreFail(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReportStore()
	rec, err := store.Create(ctx, "article-1", models.ReportKindPlagiarism)
	require.NoError(t, err)

	require.NoError(t, store.Fail(ctx, rec.ID, "extraction exploded"))
	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFailed, got.Status)
	assert.Equal(t, "extraction exploded", got.Error)
}

func TestExportRendersWorkbook(t *testing.T) {
	es := NewExportService(t.TempDir())
	rec := &models.ReportRecord{
		ID:        "rep-1",
		ArticleID: "article-1",
		Kind:      models.ReportKindSimilarity,
		CreatedAt: time.Now(),
		Similarity: &models.SimilarityReport{
			Docs: []models.DocumentExcerpt{
				{ID: models.MainContentID, Filename: models.MainContentID, TextExcerpt: "body"},
				{ID: "att", Filename: "att.txt", TextExcerpt: "attachment"},
			},
			Pairs: []models.SimilarityPair{{AID: models.MainContentID, BID: "att", Score: 0.87}},
			Meta:  models.ReportMeta{Method: models.MethodTFIDF, Threshold: 0.6, TopN: 20},
		},
	}

	path, err := es.Save(rec)
	require.NoError(t, err)
	assert.Equal(t, es.Path("rep-1"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{pairsSheet, documentsSheet, summarySheet}, f.GetSheetList())
	header, err := f.GetCellValue(pairsSheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Document A", header)
	bID, err := f.GetCellValue(pairsSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "att", bID)
	score, err := f.GetCellValue(pairsSheet, "C2")
	require.NoError(t, err)
	assert.Equal(t, "0.87", score)
	article, err := f.GetCellValue(summarySheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "article-1", article)

	require.NoError(t, es.Remove(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, es.Remove(path))
	assert.NoError(t, es.Remove(""))
}

func TestSummary(t *testing.T) {
	maxScore := 0.9
	got := Summary(ReportResult{Plagiarism: &models.PlagiarismReport{
		HeuristicAuditResult: models.HeuristicAuditResult{AIScore: 40, WebScore: 12},
		MaxSimilarity:        &maxScore,
		Pairs:                []models.SimilarityPair{{Score: 0.9}},
	}}, 0.6, 20)
	assert.Equal(t, 40, got["ai_score"])
	assert.Equal(t, 12, got["web_score"])
	assert.Equal(t, 0.9, got["max_similarity"])
	assert.Equal(t, 1, got["pairs"])
	assert.Equal(t, 20, got["top_n"])
}

func TestRetentionPurgesOldReports(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReportStore()
	es := NewExportService(t.TempDir())

	old, err := store.Create(ctx, "article-1", models.ReportKindSimilarity)
	require.NoError(t, err)
	oldRec, _ := store.Get(ctx, old.ID)
	path, err := es.Save(oldRec)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, old.ID, ReportResult{StoragePath: path}))

	fresh, err := store.Create(ctx, "article-2", models.ReportKindSimilarity)
	require.NoError(t, err)

	r := NewRetentionService(store, es, 30)
	// Everything created so far is "old" from 31 days in the future,
	// so push the fresh record's creation time forward to keep it.
	store.records[fresh.ID].CreatedAt = time.Now().Add(40 * 24 * time.Hour)
	r.now = func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }

	n, err := r.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrReportNotFound)
	_, err = store.Get(ctx, fresh.ID)
	assert.NoError(t, err)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRetentionSchedule(t *testing.T) {
	s := scheduler.New()
	r := NewRetentionService(NewMemoryReportStore(), NewExportService(t.TempDir()), 30)
	require.NoError(t, r.Schedule(s, "0 3 * * *"))
	assert.Equal(t, []string{retentionJobTag}, s.Tags())

	disabled := scheduler.New()
	require.NoError(t, NewRetentionService(NewMemoryReportStore(), nil, 0).Schedule(disabled, "0 3 * * *"))
	assert.Empty(t, disabled.Tags())
}

func TestCheckRunnerCompletesRecord(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewMemoryReportStore()
	sim := newTestSimilarityService(nil)
	runner := NewCheckRunner(sim, NewPlagiarismService(sim, audit.New(nil), nil), store, NewExportService(dir))

	rec, err := store.Create(ctx, "article-9", models.ReportKindPlagiarism)
	require.NoError(t, err)

	err = runner.Run(ctx, rec.ID, rec.Kind, PlagiarismRequest{SimilarityRequest: SimilarityRequest{
		ArticleID:   "article-9",
		Content:     gardenText,
		Attachments: []models.Attachment{attachment("copy", "copy.txt", gardenText)},
		Threshold:   0.6,
		TopN:        20,
	}})
	require.NoError(t, err)

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusCompleted, got.Status)
	require.NotNil(t, got.Plagiarism)
	assert.Len(t, got.Plagiarism.Pairs, 1)
	assert.Equal(t, filepath.Join(dir, "reports", rec.ID+".xlsx"), got.ReportStoragePath)
	assert.FileExists(t, got.ReportStoragePath)
	assert.Equal(t, 1, got.SimilaritySummary["pairs"])
}

func TestCheckRunnerUnknownKind(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReportStore()
	sim := newTestSimilarityService(nil)
	runner := NewCheckRunner(sim, NewPlagiarismService(sim, audit.New(nil), nil), store, NewExportService(t.TempDir()))

	rec, err := store.Create(ctx, "article-9", "translation")
	require.NoError(t, err)
	assert.Error(t, runner.Run(ctx, rec.ID, rec.Kind, PlagiarismRequest{}))

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFailed, got.Status)
}
