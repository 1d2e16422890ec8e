package services

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"mindradix-similarity/internal/logger"
	"mindradix-similarity/models"
)

const (
	pairsSheet     = "Pairs"
	documentsSheet = "Documents"
	summarySheet   = "Summary"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ExportService renders finished reports as XLSX workbooks.
type ExportService struct {
	dir string
}

func NewExportService(storageDir string) *ExportService {
	return &ExportService{dir: filepath.Join(storageDir, "reports")}
}

// ContentType is the MIME type of exported workbooks.
func (es *ExportService) ContentType() string { return xlsxContentType }

// Path returns where the workbook for a record id is stored.
func (es *ExportService) Path(id string) string {
	return filepath.Join(es.dir, id+".xlsx")
}

// Save writes the workbook for rec to disk and returns its path.
func (es *ExportService) Save(rec *models.ReportRecord) (string, error) {
	if err := os.MkdirAll(es.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	buf, err := es.Render(rec)
	if err != nil {
		return "", err
	}
	path := es.Path(rec.ID)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write workbook: %w", err)
	}
	return path, nil
}

// Remove deletes a stored workbook; a missing file is not an error.
func (es *ExportService) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Render builds the workbook in memory.
func (es *ExportService) Render(rec *models.ReportRecord) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("Error closing workbook", "error", err)
		}
	}()

	pairs, docs, meta := reportContents(rec)

	index, err := f.NewSheet(pairsSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	// The default sheet is never used.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	writeHeaders(f, pairsSheet, []string{"Document A", "Document B", "Score"})
	for i, p := range pairs {
		row := i + 2
		f.SetCellValue(pairsSheet, fmt.Sprintf("A%d", row), p.AID)
		f.SetCellValue(pairsSheet, fmt.Sprintf("B%d", row), p.BID)
		f.SetCellValue(pairsSheet, fmt.Sprintf("C%d", row), p.Score)
	}
	f.SetColWidth(pairsSheet, "A", "B", 30)
	f.SetColWidth(pairsSheet, "C", "C", 10)

	if _, err := f.NewSheet(documentsSheet); err != nil {
		return nil, fmt.Errorf("failed to create documents sheet: %w", err)
	}
	writeHeaders(f, documentsSheet, []string{"ID", "Filename", "Excerpt"})
	for i, d := range docs {
		row := i + 2
		f.SetCellValue(documentsSheet, fmt.Sprintf("A%d", row), d.ID)
		f.SetCellValue(documentsSheet, fmt.Sprintf("B%d", row), d.Filename)
		f.SetCellValue(documentsSheet, fmt.Sprintf("C%d", row), d.TextExcerpt)
	}
	f.SetColWidth(documentsSheet, "A", "B", 30)
	f.SetColWidth(documentsSheet, "C", "C", 80)

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}
	summaryData := [][]interface{}{
		{"Report", rec.ID},
		{"Article", rec.ArticleID},
		{"Kind", rec.Kind},
		{"Created", rec.CreatedAt.Format(time.RFC3339)},
		{"Method", meta.Method},
		{"Threshold", meta.Threshold},
		{"Top N", meta.TopN},
		{"Documents", len(docs)},
		{"Pairs", len(pairs)},
	}
	if p := rec.Plagiarism; p != nil {
		summaryData = append(summaryData,
			[]interface{}{"", ""},
			[]interface{}{"AI Score", p.AIScore},
			[]interface{}{"Web Score", p.WebScore},
		)
		if p.MaxSimilarity != nil {
			summaryData = append(summaryData, []interface{}{"Max Similarity", *p.MaxSimilarity})
		}
		if p.AvgSimilarity != nil {
			summaryData = append(summaryData, []interface{}{"Avg Similarity", *p.AvgSimilarity})
		}
		for _, detail := range p.AIDetails {
			summaryData = append(summaryData, []interface{}{"AI Detail", detail})
		}
		for _, source := range p.WebSources {
			summaryData = append(summaryData, []interface{}{"Web Source", source})
		}
	}
	for i, row := range summaryData {
		for j, cell := range row {
			f.SetCellValue(summarySheet, fmt.Sprintf("%c%d", 'A'+j, i+1), cell)
		}
	}
	f.SetColWidth(summarySheet, "A", "A", 18)
	f.SetColWidth(summarySheet, "B", "B", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}

func writeHeaders(f *excelize.File, sheet string, headers []string) {
	for i, header := range headers {
		f.SetCellValue(sheet, fmt.Sprintf("%c1", 'A'+i), header)
	}
}

func reportContents(rec *models.ReportRecord) ([]models.SimilarityPair, []models.DocumentExcerpt, models.ReportMeta) {
	switch {
	case rec.Similarity != nil:
		return rec.Similarity.Pairs, rec.Similarity.Docs, rec.Similarity.Meta
	case rec.Plagiarism != nil:
		meta := models.ReportMeta{Method: models.MethodTFIDF}
		meta.Threshold = summaryNumber(rec.SimilaritySummary["threshold"])
		meta.TopN = int(summaryNumber(rec.SimilaritySummary["top_n"]))
		return rec.Plagiarism.Pairs, rec.Plagiarism.Docs, meta
	}
	return nil, nil, models.ReportMeta{}
}

// summaryNumber reads a number back from a summary map, whichever numeric
// type the store decoded it as.
func summaryNumber(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// Summary condenses a finished report for the record's similarity_summary.
func Summary(result ReportResult, threshold float64, topN int) map[string]interface{} {
	summary := map[string]interface{}{
		"threshold": threshold,
		"top_n":     topN,
	}
	switch {
	case result.Similarity != nil:
		summary["status"] = result.Similarity.Status
		summary["documents"] = len(result.Similarity.Docs)
		summary["pairs"] = len(result.Similarity.Pairs)
		if len(result.Similarity.Pairs) > 0 {
			summary["max_similarity"] = result.Similarity.Pairs[0].Score
		}
	case result.Plagiarism != nil:
		summary["documents"] = len(result.Plagiarism.Docs)
		summary["pairs"] = len(result.Plagiarism.Pairs)
		summary["ai_score"] = result.Plagiarism.AIScore
		summary["web_score"] = result.Plagiarism.WebScore
		if result.Plagiarism.MaxSimilarity != nil {
			summary["max_similarity"] = *result.Plagiarism.MaxSimilarity
		}
	}
	return summary
}
