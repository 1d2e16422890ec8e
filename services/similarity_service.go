package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"mindradix-similarity/internal/config"
	"mindradix-similarity/internal/crawler"
	"mindradix-similarity/internal/extractor"
	"mindradix-similarity/internal/logger"
	"mindradix-similarity/internal/similarity"
	"mindradix-similarity/internal/telemetry"
	"mindradix-similarity/models"
	"mindradix-similarity/utils"
)

const (
	DefaultThreshold = 0.6
	DefaultTopN      = 20
	MaxTopN          = 200

	// webQueryWords is how many body words make up a derived search query.
	webQueryWords = 12
)

// SimilarityRequest is one similarity check over an article and its attachments.
type SimilarityRequest struct {
	ArticleID   string
	Title       string
	Content     string // article body, may contain HTML
	Attachments []models.Attachment
	// WebDocs are caller-supplied corroboration pages. When empty and
	// SearchWeb is set, the service runs its own search.
	WebDocs   []models.WebDocument
	SearchWeb bool
	Threshold float64
	TopN      int
}

// WebCorroborator finds web pages related to a query.
type WebCorroborator interface {
	Corroborate(ctx context.Context, query string) []models.WebDocument
}

// SimilarityService assembles the document set of an article and ranks
// pairwise TF-IDF similarity. It keeps no state between calls.
type SimilarityService struct {
	extractor *extractor.Extractor
	engine    *similarity.Engine
	web       WebCorroborator
	metrics   *telemetry.Metrics

	maxDocChars  int
	excerptChars int
	webMinChars  int
	webTimeout   time.Duration
}

func NewSimilarityService(cfg *config.Config, ext *extractor.Extractor, engine *similarity.Engine, web WebCorroborator, metrics *telemetry.Metrics) *SimilarityService {
	return &SimilarityService{
		extractor:    ext,
		engine:       engine,
		web:          web,
		metrics:      metrics,
		maxDocChars:  cfg.MaxDocumentChars,
		excerptChars: cfg.ExcerptChars,
		webMinChars:  cfg.WebMinChars,
		webTimeout:   cfg.WebPassTimeout,
	}
}

// RunSimilarityCheck never fails: unreadable attachments and unreachable web
// pages simply contribute no document.
func (s *SimilarityService) RunSimilarityCheck(ctx context.Context, req SimilarityRequest) *models.SimilarityReport {
	ctx, span := telemetry.Tracer().Start(ctx, "similarity.check")
	defer span.End()

	docs, _ := s.BuildDocuments(ctx, req)
	report, _ := s.rank(ctx, docs, req.Threshold, req.TopN)

	span.SetAttributes(
		attribute.String("article.id", req.ArticleID),
		attribute.Int("similarity.documents", len(docs)),
		attribute.Int("similarity.pairs", len(report.Pairs)),
	)
	s.metrics.RecordSimilarity(models.ReportKindSimilarity, len(report.Pairs))
	logger.Info("Similarity check finished",
		"article_id", req.ArticleID,
		"documents", len(docs),
		"pairs", len(report.Pairs),
		"status", report.Status,
	)
	return report
}

// BuildDocuments returns the full document set (body, attachments, web pages)
// and, separately, the article's own documents (body and attachments) that
// the plagiarism audit runs on.
func (s *SimilarityService) BuildDocuments(ctx context.Context, req SimilarityRequest) (all []models.Document, own []models.Document) {
	body := extractor.Normalize(extractor.StripHTML(req.Content), s.maxDocChars)
	if body != "" {
		own = append(own, models.Document{ID: models.MainContentID, Filename: models.MainContentID, Text: body})
	}
	own = append(own, s.extractAttachments(ctx, req.Attachments)...)

	all = append(all, own...)
	all = append(all, s.webDocuments(ctx, req, body)...)
	uniqueIDs(all)
	return all, all[:len(own):len(own)]
}

// uniqueIDs suffixes repeated document ids with -2, -3, ... so no pair can
// join a document with itself.
func uniqueIDs(docs []models.Document) {
	used := make(map[string]struct{}, len(docs))
	for i := range docs {
		id := docs[i].ID
		if _, dup := used[id]; dup {
			for n := 2; ; n++ {
				candidate := fmt.Sprintf("%s-%d", docs[i].ID, n)
				if _, taken := used[candidate]; !taken {
					id = candidate
					break
				}
			}
		}
		docs[i].ID = id
		used[id] = struct{}{}
	}
}

func (s *SimilarityService) extractAttachments(ctx context.Context, attachments []models.Attachment) []models.Document {
	_, span := telemetry.Tracer().Start(ctx, "similarity.extract")
	defer span.End()

	docs := make([]models.Document, len(attachments))
	var g errgroup.Group
	for i, att := range attachments {
		g.Go(func() error {
			id := att.ID
			if id == "" {
				id = fmt.Sprintf("attachment-%d", i+1)
			}
			text := ""
			if ctx.Err() == nil {
				text = s.extractor.ExtractText(att.Filename, att.Bytes)
			}
			docs[i] = models.Document{
				ID:       id,
				Filename: att.Filename,
				Text:     extractor.Normalize(text, s.maxDocChars),
			}
			return nil
		})
	}
	_ = g.Wait()

	span.SetAttributes(attribute.Int("attachments", len(attachments)))
	return docs
}

func (s *SimilarityService) webDocuments(ctx context.Context, req SimilarityRequest, body string) []models.Document {
	pages := req.WebDocs
	if len(pages) == 0 && req.SearchWeb && s.web != nil {
		query := WebQuery(req.Title, body)
		if query != "" {
			webCtx, cancel := utils.WithSoftTimeout(ctx, s.webTimeout)
			webCtx, span := telemetry.Tracer().Start(webCtx, "similarity.web")
			pages = s.web.Corroborate(webCtx, query)
			span.SetAttributes(attribute.Int("web.pages", len(pages)))
			span.End()
			cancel()
		}
	}

	docs := make([]models.Document, 0, len(pages))
	seen := make(map[string]struct{}, len(pages))
	for _, p := range pages {
		text := extractor.Normalize(p.Text, s.maxDocChars)
		if len([]rune(text)) < s.webMinChars {
			continue
		}
		key := crawler.URLKey(p.URL)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		docs = append(docs, models.Document{ID: WebDocumentID(p.URL), Filename: p.URL, Text: text})
	}
	return docs
}

// rank scores docs and returns the filtered report together with every pair.
func (s *SimilarityService) rank(ctx context.Context, docs []models.Document, threshold float64, topN int) (*models.SimilarityReport, []models.SimilarityPair) {
	threshold = ClampThreshold(threshold)
	topN = ClampTopN(topN)

	report := &models.SimilarityReport{
		Docs:  s.excerpts(docs),
		Pairs: []models.SimilarityPair{},
		Meta:  models.ReportMeta{Method: models.MethodTFIDF, Threshold: threshold, TopN: topN},
	}

	if countNonEmpty(docs) < 2 {
		report.Status = models.SimilarityStatusInsufficientInput
		report.Message = "At least two documents with text are needed; no further attachments or web results were available"
		return report, nil
	}

	_, span := telemetry.Tracer().Start(ctx, "similarity.tfidf")
	result := s.engine.ComputeSimilarities(docs)
	span.SetAttributes(attribute.Int("similarity.candidate_pairs", len(result.Pairs)))
	span.End()

	report.Pairs = FilterPairs(result.Pairs, threshold, topN)
	report.Status = models.SimilarityStatusOK
	return report, result.Pairs
}

func (s *SimilarityService) excerpts(docs []models.Document) []models.DocumentExcerpt {
	out := make([]models.DocumentExcerpt, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.DocumentExcerpt{
			ID:          d.ID,
			Filename:    d.Filename,
			TextExcerpt: extractor.Excerpt(d.Text, s.excerptChars),
		})
	}
	return out
}

func countNonEmpty(docs []models.Document) int {
	n := 0
	for _, d := range docs {
		if d.Text != "" {
			n++
		}
	}
	return n
}

// FilterPairs keeps pairs scoring at least threshold, then the first topN.
// pairs must already be sorted by descending score.
func FilterPairs(pairs []models.SimilarityPair, threshold float64, topN int) []models.SimilarityPair {
	out := make([]models.SimilarityPair, 0, len(pairs))
	for _, p := range pairs {
		if p.Score >= threshold {
			out = append(out, p)
		}
	}
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

// ClampThreshold maps NaN to the default and anything else into [0, 1].
func ClampThreshold(t float64) float64 {
	if math.IsNaN(t) {
		return DefaultThreshold
	}
	return math.Max(0, math.Min(1, t))
}

// ClampTopN maps values below 1 and above 200 to the nearest bound.
func ClampTopN(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxTopN {
		return MaxTopN
	}
	return n
}

// parseNumber reads a query value as a float. Missing, non-numeric and NaN
// input reports false; infinities and overflowing values are kept as numbers.
func parseNumber(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return v, true // ±Inf or ±0 on overflow/underflow
		}
		return 0, false
	}
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// ParseThreshold reads a query parameter, falling back to def when it is
// missing or not a number. Out-of-range numbers clamp to [0, 1].
func ParseThreshold(raw string, def float64) float64 {
	v, ok := parseNumber(raw)
	if !ok {
		return ClampThreshold(def)
	}
	return ClampThreshold(v)
}

// ParseTopN reads a query parameter, falling back to def when it is missing
// or not a number. Fractions truncate; out-of-range numbers clamp to [1, 200].
func ParseTopN(raw string, def int) int {
	v, ok := parseNumber(raw)
	if !ok {
		return ClampTopN(def)
	}
	// Clamp before converting: int() of a float beyond the int range is undefined.
	v = math.Max(1, math.Min(MaxTopN, math.Trunc(v)))
	return int(v)
}

// WebQuery derives a search query: the title when present, otherwise the
// first words of the article body.
func WebQuery(title, body string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	words := strings.Fields(body)
	if len(words) > webQueryWords {
		words = words[:webQueryWords]
	}
	return strings.Join(words, " ")
}

// WebDocumentID is the stable document id of a scraped page.
func WebDocumentID(url string) string {
	return "web-" + utils.Fingerprint(url, 12)
}

var _ WebCorroborator = (*crawler.Fetcher)(nil)
