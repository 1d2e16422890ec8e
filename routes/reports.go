package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"mindradix-similarity/internal/config"
	"mindradix-similarity/internal/logger"
	"mindradix-similarity/internal/queue"
	"mindradix-similarity/middleware"
	"mindradix-similarity/models"
	"mindradix-similarity/services"
	"mindradix-similarity/utils"
)

// inlineRunTimeout bounds checks run in-process when no queue is configured.
const inlineRunTimeout = 10 * time.Minute

// ReportHandler serves the similarity and plagiarism endpoints.
type ReportHandler struct {
	cfg        *config.Config
	similarity *services.SimilarityService
	plagiarism *services.PlagiarismService
	store      services.ReportStore
	export     *services.ExportService
	runner     *services.CheckRunner
	loader     *services.AttachmentLoader
	queue      queue.Enqueuer
}

func NewReportHandler(
	cfg *config.Config,
	sim *services.SimilarityService,
	plag *services.PlagiarismService,
	store services.ReportStore,
	export *services.ExportService,
	runner *services.CheckRunner,
	loader *services.AttachmentLoader,
	enqueuer queue.Enqueuer,
) *ReportHandler {
	return &ReportHandler{
		cfg:        cfg,
		similarity: sim,
		plagiarism: plag,
		store:      store,
		export:     export,
		runner:     runner,
		loader:     loader,
		queue:      enqueuer,
	}
}

// SetupReportRoutes registers the check and report endpoints under /api.
func SetupReportRoutes(router *gin.Engine, h *ReportHandler, authMiddleware gin.HandlerFunc) {
	api := router.Group("/api")
	api.Use(authMiddleware)
	{
		articles := api.Group("/articles/:id")
		articles.POST("/similarity", h.HandleSimilarity)
		articles.POST("/plagiarism", h.HandlePlagiarism)
		articles.POST("/checks", h.HandleQueueCheck)

		reports := api.Group("/reports/:id")
		reports.GET("", h.HandleGetReport)
		reports.GET("/export", h.HandleExportReport)
	}
}

// attachmentBody is one attachment in a JSON request: inline bytes
// (base64 in JSON) or a URL the service downloads.
type attachmentBody struct {
	ID       string `json:"id"`
	Filename string `json:"filename" binding:"required"`
	Data     []byte `json:"data,omitempty"`
	URL      string `json:"url,omitempty"`
}

// checkBody is the JSON form of a check request.
type checkBody struct {
	Title          string                 `json:"title"`
	Content        string                 `json:"content"`
	Attachments    []attachmentBody       `json:"attachments" binding:"dive"`
	WebDocs        []models.WebDocument   `json:"web_docs"`
	SearchWeb      bool                   `json:"search_web"`
	Threshold      *float64               `json:"threshold"`
	TopN           *int                   `json:"top_n"`
	ExternalReport map[string]interface{} `json:"external_report"`
}

// checkInput is a parsed request before attachment references are resolved.
type checkInput struct {
	req  services.PlagiarismRequest
	refs []models.AttachmentRef
}

func (h *ReportHandler) HandleSimilarity(c *gin.Context) {
	in, ok := h.bindCheck(c)
	if !ok {
		return
	}
	req := h.resolve(c.Request.Context(), in)
	c.JSON(http.StatusOK, h.similarity.RunSimilarityCheck(c.Request.Context(), req.SimilarityRequest))
}

func (h *ReportHandler) HandlePlagiarism(c *gin.Context) {
	in, ok := h.bindCheck(c)
	if !ok {
		return
	}
	req := h.resolve(c.Request.Context(), in)
	c.JSON(http.StatusOK, h.plagiarism.RunPlagiarismCheck(c.Request.Context(), req))
}

// HandleQueueCheck stores a pending report and hands the check to a worker.
func (h *ReportHandler) HandleQueueCheck(c *gin.Context) {
	kind := c.DefaultQuery("kind", models.ReportKindSimilarity)
	if _, err := queue.TaskType(kind); err != nil {
		utils.RespondWithBadRequest(c, "kind must be similarity or plagiarism", gin.H{"kind": kind})
		return
	}

	in, ok := h.bindCheck(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	rec, err := h.store.Create(ctx, in.req.ArticleID, kind)
	if err != nil {
		logger.Error("Failed to create report", "request_id", middleware.GetRequestID(c), "article_id", in.req.ArticleID, "error", err)
		utils.RespondWithInternalError(c, "Failed to create report", nil)
		return
	}

	if h.queue == nil {
		go h.runInline(rec.ID, kind, in)
	} else if err := h.enqueue(ctx, rec.ID, kind, in); err != nil {
		logger.Error("Failed to enqueue report", "request_id", middleware.GetRequestID(c), "report_id", rec.ID, "error", err)
		_ = h.store.Fail(ctx, rec.ID, "failed to enqueue")
		utils.RespondWithUnavailable(c, "Report queue unavailable")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"report_id":  rec.ID,
		"article_id": rec.ArticleID,
		"kind":       rec.Kind,
		"status":     rec.Status,
	})
}

func (h *ReportHandler) enqueue(ctx context.Context, id, kind string, in checkInput) error {
	payload := queue.ReportPayload{
		ReportID:       id,
		Kind:           kind,
		ArticleID:      in.req.ArticleID,
		Title:          in.req.Title,
		Content:        in.req.Content,
		AttachmentRefs: in.refs,
		WebDocs:        in.req.WebDocs,
		SearchWeb:      in.req.SearchWeb,
		Threshold:      in.req.Threshold,
		TopN:           in.req.TopN,
		ExternalReport: in.req.ExternalReport,
	}
	for _, a := range in.req.Attachments {
		payload.Attachments = append(payload.Attachments, queue.AttachmentPayload{ID: a.ID, Filename: a.Filename, Bytes: a.Bytes})
	}

	task, err := queue.NewReportTask(payload)
	if err != nil {
		return err
	}
	_, err = h.queue.EnqueueContext(ctx, task)
	return err
}

func (h *ReportHandler) runInline(id, kind string, in checkInput) {
	ctx, cancel := context.WithTimeout(context.Background(), inlineRunTimeout)
	defer cancel()

	req := h.resolve(ctx, in)
	if err := h.runner.Run(ctx, id, kind, req); err != nil {
		logger.Error("Inline report failed", "report_id", id, "error", err)
		_ = h.store.Fail(ctx, id, err.Error())
	}
}

func (h *ReportHandler) HandleGetReport(c *gin.Context) {
	rec, ok := h.loadReport(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rec)
}

// HandleExportReport streams the report workbook, rendering it when the
// stored copy is missing.
func (h *ReportHandler) HandleExportReport(c *gin.Context) {
	rec, ok := h.loadReport(c)
	if !ok {
		return
	}
	if rec.Status != models.ReportStatusCompleted {
		utils.RespondWithError(c, http.StatusConflict, "report_not_ready", "Report is not completed yet", gin.H{"status": rec.Status})
		return
	}

	filename := fmt.Sprintf("%s-%s-%s.xlsx", rec.Kind, rec.ArticleID, rec.ID)
	if rec.ReportStoragePath != "" {
		if _, err := os.Stat(rec.ReportStoragePath); err == nil {
			c.FileAttachment(rec.ReportStoragePath, filename)
			return
		}
	}

	buf, err := h.export.Render(rec)
	if err != nil {
		logger.Error("Failed to render report", "report_id", rec.ID, "error", err)
		utils.RespondWithInternalError(c, "Failed to export report", nil)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, h.export.ContentType(), buf.Bytes())
}

func (h *ReportHandler) loadReport(c *gin.Context) (*models.ReportRecord, bool) {
	rec, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, services.ErrReportNotFound) {
		utils.RespondWithNotFound(c, "Report not found")
		return nil, false
	}
	if err != nil {
		logger.Error("Failed to load report", "request_id", middleware.GetRequestID(c), "report_id", c.Param("id"), "error", err)
		utils.RespondWithInternalError(c, "Failed to load report", nil)
		return nil, false
	}
	return rec, true
}

// bindCheck reads a multipart or JSON check request. Query parameters
// threshold, top (or topN) and web take precedence over body values.
func (h *ReportHandler) bindCheck(c *gin.Context) (checkInput, bool) {
	var in checkInput
	var ok bool
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		in, ok = h.bindMultipart(c)
	} else {
		in, ok = h.bindJSON(c)
	}
	if !ok {
		return in, false
	}

	in.req.ArticleID = c.Param("id")
	if raw, set := c.GetQuery("threshold"); set {
		in.req.Threshold = services.ParseThreshold(raw, h.cfg.SimilarityThreshold)
	}
	if raw, set := c.GetQuery("top"); set {
		in.req.TopN = services.ParseTopN(raw, h.cfg.SimilarityTopN)
	} else if raw, set := c.GetQuery("topN"); set {
		in.req.TopN = services.ParseTopN(raw, h.cfg.SimilarityTopN)
	}
	if raw, set := c.GetQuery("web"); set {
		in.req.SearchWeb, _ = strconv.ParseBool(raw)
	}
	return in, true
}

func (h *ReportHandler) bindJSON(c *gin.Context) (checkInput, bool) {
	var body checkBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			if isTooLarge(err) {
				utils.RespondWithTooLarge(c, "Request body exceeds maximum size")
				return checkInput{}, false
			}
			utils.RespondWithBadRequest(c, "Invalid request body", err.Error())
			return checkInput{}, false
		}
	}

	in := checkInput{req: services.PlagiarismRequest{
		SimilarityRequest: services.SimilarityRequest{
			Title:     body.Title,
			Content:   body.Content,
			WebDocs:   body.WebDocs,
			SearchWeb: body.SearchWeb,
			Threshold: h.cfg.SimilarityThreshold,
			TopN:      h.cfg.SimilarityTopN,
		},
		ExternalReport: body.ExternalReport,
	}}
	if body.Threshold != nil {
		in.req.Threshold = services.ClampThreshold(*body.Threshold)
	}
	if body.TopN != nil {
		in.req.TopN = services.ClampTopN(*body.TopN)
	}

	for i, a := range body.Attachments {
		id := a.ID
		if id == "" {
			id = fmt.Sprintf("attachment-%d", i+1)
		}
		if a.URL != "" && len(a.Data) == 0 {
			in.refs = append(in.refs, models.AttachmentRef{ID: id, Filename: a.Filename, URL: a.URL})
			continue
		}
		in.req.Attachments = append(in.req.Attachments, models.Attachment{ID: id, Filename: a.Filename, Bytes: a.Data})
	}
	return in, true
}

func (h *ReportHandler) bindMultipart(c *gin.Context) (checkInput, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		if isTooLarge(err) {
			utils.RespondWithTooLarge(c, "Upload exceeds maximum size")
			return checkInput{}, false
		}
		utils.RespondWithBadRequest(c, "Invalid multipart form", err.Error())
		return checkInput{}, false
	}

	in := checkInput{req: services.PlagiarismRequest{
		SimilarityRequest: services.SimilarityRequest{
			Title:     c.PostForm("title"),
			Content:   c.PostForm("content"),
			Threshold: services.ParseThreshold(c.PostForm("threshold"), h.cfg.SimilarityThreshold),
			TopN:      services.ParseTopN(c.PostForm("top_n"), h.cfg.SimilarityTopN),
		},
	}}
	in.req.SearchWeb, _ = strconv.ParseBool(c.PostForm("search_web"))

	if raw := c.PostForm("web_docs"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.req.WebDocs); err != nil {
			utils.RespondWithBadRequest(c, "web_docs must be a JSON array", err.Error())
			return checkInput{}, false
		}
	}
	if raw := c.PostForm("external_report"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.req.ExternalReport); err != nil {
			utils.RespondWithBadRequest(c, "external_report must be a JSON object", err.Error())
			return checkInput{}, false
		}
	}

	for i, fh := range form.File["attachments"] {
		data, err := readFormFile(fh)
		if err != nil {
			utils.RespondWithBadRequest(c, "Cannot read attachment", gin.H{"filename": fh.Filename})
			return checkInput{}, false
		}
		in.req.Attachments = append(in.req.Attachments, models.Attachment{
			ID:       fmt.Sprintf("attachment-%d", i+1),
			Filename: fh.Filename,
			Bytes:    data,
		})
	}
	return in, true
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// resolve downloads attachment references into the request.
func (h *ReportHandler) resolve(ctx context.Context, in checkInput) services.PlagiarismRequest {
	req := in.req
	if len(in.refs) > 0 && h.loader != nil {
		req.Attachments = append(append([]models.Attachment(nil), req.Attachments...), h.loader.Load(ctx, in.refs)...)
	}
	return req
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// SetupHealthRoutes registers the unauthenticated health probe.
func SetupHealthRoutes(router *gin.Engine, ping func(ctx context.Context) error) {
	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{"status": "healthy", "timestamp": time.Now()}
		if ping != nil {
			if err := ping(c.Request.Context()); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body["error"] = err.Error()
			}
		}
		c.JSON(status, body)
	})
}
