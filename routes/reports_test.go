package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindradix-similarity/internal/audit"
	"mindradix-similarity/internal/config"
	"mindradix-similarity/internal/extractor"
	"mindradix-similarity/internal/queue"
	"mindradix-similarity/internal/similarity"
	"mindradix-similarity/middleware"
	"mindradix-similarity/models"
	"mindradix-similarity/services"
)

const gardenText = "Community gardens give neighbours a shared place to grow vegetables, trade seeds and learn composting from one another."

type fakeQueue struct {
	tasks []*asynq.Task
	err   error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "task", Type: task.Type()}, nil
}

type testServer struct {
	router *gin.Engine
	store  *services.MemoryReportStore
	export *services.ExportService
}

func newTestServer(t *testing.T, q queue.Enqueuer) *testServer {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		SimilarityThreshold: 0.6,
		SimilarityTopN:      20,
		MaxDocumentChars:    200000,
		ExcerptChars:        200,
		WebMinChars:         100,
	}
	sim := services.NewSimilarityService(cfg, extractor.New(nil), similarity.NewEngine(0), nil, nil)
	plag := services.NewPlagiarismService(sim, audit.New(nil), nil)
	store := services.NewMemoryReportStore()
	export := services.NewExportService(t.TempDir())
	runner := services.NewCheckRunner(sim, plag, store, export)
	h := NewReportHandler(cfg, sim, plag, store, export, runner, services.NewAttachmentLoader(1<<20), q)

	r := gin.New()
	r.Use(middleware.RequestIDMiddleware())
	SetupHealthRoutes(r, nil)
	SetupReportRoutes(r, h, middleware.ServiceAuth(nil))
	return &testServer{router: r, store: store, export: export}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, url, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestSimilarityJSON(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(jsonRequest(t, http.MethodPost, "/api/articles/a1/similarity?threshold=0.5&top=3", gin.H{
		"content": "<p>" + gardenText + "</p>",
		"attachments": []gin.H{
			{"id": "copy", "filename": "copy.txt", "data": []byte(gardenText)},
		},
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report models.SimilarityReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, models.SimilarityStatusOK, report.Status)
	assert.Equal(t, 0.5, report.Meta.Threshold)
	assert.Equal(t, 3, report.Meta.TopN)
	require.Len(t, report.Pairs, 1)
	assert.Equal(t, models.MainContentID, report.Pairs[0].AID)
	assert.Equal(t, "copy", report.Pairs[0].BID)
}

func TestSimilarityMultipart(t *testing.T) {
	s := newTestServer(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("content", gardenText))
	require.NoError(t, mw.WriteField("threshold", "not-a-number"))
	fw, err := mw.CreateFormFile("attachments", "notes.md")
	require.NoError(t, err)
	_, err = fw.Write([]byte(gardenText))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/articles/a1/similarity", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := s.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report models.SimilarityReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 0.6, report.Meta.Threshold)
	require.Len(t, report.Docs, 2)
	assert.Equal(t, "notes.md", report.Docs[1].Filename)
	require.Len(t, report.Pairs, 1)
}

func TestSimilarityEmptyBody(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(httptest.NewRequest(http.MethodPost, "/api/articles/a1/similarity", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var report models.SimilarityReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, models.SimilarityStatusInsufficientInput, report.Status)
	assert.NotNil(t, report.Pairs)
}

func TestSimilarityBadJSON(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/articles/a1/similarity", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, s.do(req).Code)
}

func TestPlagiarismPlaceholder(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(jsonRequest(t, http.MethodPost, "/api/articles/a1/plagiarism", gin.H{
		"content":         "Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor incididunt.",
		"external_report": gin.H{"provider": "none"},
	}))
	require.Equal(t, http.StatusOK, w.Code)

	var report models.PlagiarismReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 100, report.WebScore)
	assert.NotEmpty(t, report.WebSources)
	assert.Equal(t, "none", report.External["provider"])
}

func TestQueueCheckEnqueues(t *testing.T) {
	q := &fakeQueue{}
	s := newTestServer(t, q)

	w := s.do(jsonRequest(t, http.MethodPost, "/api/articles/a1/checks?kind=plagiarism", gin.H{"content": gardenText}))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ReportStatusPending, resp["status"])
	require.Len(t, q.tasks, 1)
	assert.Equal(t, queue.TaskPlagiarismReport, q.tasks[0].Type())

	var payload queue.ReportPayload
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &payload))
	assert.Equal(t, resp["report_id"], payload.ReportID)
	assert.Equal(t, "a1", payload.ArticleID)
	assert.Equal(t, 0.6, payload.Threshold)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/reports/"+resp["report_id"], nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestQueueCheckRejectsUnknownKind(t *testing.T) {
	s := newTestServer(t, &fakeQueue{})
	w := s.do(jsonRequest(t, http.MethodPost, "/api/articles/a1/checks?kind=summary", gin.H{}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueueCheckQueueDown(t *testing.T) {
	s := newTestServer(t, &fakeQueue{err: errors.New("redis down")})
	w := s.do(jsonRequest(t, http.MethodPost, "/api/articles/a1/checks", gin.H{"content": gardenText}))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestQueueCheckInlineAndExport(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(jsonRequest(t, http.MethodPost, "/api/articles/a1/checks?kind=similarity", gin.H{
		"content":     gardenText,
		"attachments": []gin.H{{"filename": "copy.txt", "data": []byte(gardenText)}},
	}))
	require.Equal(t, http.StatusAccepted, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	id := resp["report_id"]

	require.Eventually(t, func() bool {
		rec, err := s.store.Get(context.Background(), id)
		return err == nil && rec.Status == models.ReportStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/reports/"+id, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var rec models.ReportRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	require.NotNil(t, rec.Similarity)
	assert.Len(t, rec.Similarity.Pairs, 1)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/reports/"+id+"/export", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.Equal(t, []byte("PK"), w.Body.Bytes()[:2])
}

func TestExportNotReady(t *testing.T) {
	s := newTestServer(t, &fakeQueue{})
	rec, err := s.store.Create(context.Background(), "a1", models.ReportKindSimilarity)
	require.NoError(t, err)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/reports/"+rec.ID+"/export", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReportNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, s.do(httptest.NewRequest(http.MethodGet, "/api/reports/nope", nil)).Code)
	assert.Equal(t, http.StatusNotFound, s.do(httptest.NewRequest(http.MethodGet, "/api/reports/nope/export", nil)).Code)
}
