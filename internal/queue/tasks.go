package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"mindradix-similarity/internal/logger"
	"mindradix-similarity/models"
	"mindradix-similarity/services"
)

const (
	TaskSimilarityReport = "report:similarity"
	TaskPlagiarismReport = "report:plagiarism"

	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// AttachmentPayload carries attachment bytes through the queue.
type AttachmentPayload struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Bytes    []byte `json:"bytes"`
}

// ReportPayload is everything a worker needs to run a check for a stored record.
type ReportPayload struct {
	ReportID       string                 `json:"report_id"`
	Kind           string                 `json:"kind"`
	ArticleID      string                 `json:"article_id"`
	Title          string                 `json:"title,omitempty"`
	Content        string                 `json:"content"`
	Attachments    []AttachmentPayload    `json:"attachments,omitempty"`
	AttachmentRefs []models.AttachmentRef `json:"attachment_refs,omitempty"`
	WebDocs        []models.WebDocument   `json:"web_docs,omitempty"`
	SearchWeb      bool                   `json:"search_web"`
	Threshold      float64                `json:"threshold"`
	TopN           int                    `json:"top_n"`
	ExternalReport map[string]interface{} `json:"external_report,omitempty"`
}

// Enqueuer is the part of *asynq.Client the API needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskType maps a report kind to its task type.
func TaskType(kind string) (string, error) {
	switch kind {
	case models.ReportKindSimilarity:
		return TaskSimilarityReport, nil
	case models.ReportKindPlagiarism:
		return TaskPlagiarismReport, nil
	}
	return "", fmt.Errorf("unknown report kind %q", kind)
}

// NewReportTask creates the task for payload.Kind. Checks that search the web
// run on the low priority queue since they are bounded by remote sites.
func NewReportTask(payload ReportPayload) (*asynq.Task, error) {
	taskType, err := TaskType(payload.Kind)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	queue := QueueDefault
	if payload.SearchWeb && len(payload.WebDocs) == 0 {
		queue = QueueLow
	}
	return asynq.NewTask(
		taskType,
		data,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue(queue),
		asynq.TaskID(payload.ReportID),
	), nil
}

// TaskProcessor runs queued checks.
type TaskProcessor struct {
	runner *services.CheckRunner
	loader *services.AttachmentLoader
	store  services.ReportStore
}

func NewTaskProcessor(runner *services.CheckRunner, loader *services.AttachmentLoader, store services.ReportStore) *TaskProcessor {
	return &TaskProcessor{runner: runner, loader: loader, store: store}
}

// Register adds the processor's handlers to mux.
func (p *TaskProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskSimilarityReport, p.ProcessReport)
	mux.HandleFunc(TaskPlagiarismReport, p.ProcessReport)
}

func (p *TaskProcessor) ProcessReport(ctx context.Context, t *asynq.Task) error {
	var payload ReportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Processing report", "report_id", payload.ReportID, "kind", payload.Kind, "article_id", payload.ArticleID)

	req := p.request(ctx, payload)
	if err := p.runner.Run(ctx, payload.ReportID, payload.Kind, req); err != nil {
		if isLastAttempt(ctx) {
			if ferr := p.store.Fail(ctx, payload.ReportID, err.Error()); ferr != nil {
				logger.Error("Failed to mark report failed", "report_id", payload.ReportID, "error", ferr)
			}
		}
		return err
	}
	return nil
}

func (p *TaskProcessor) request(ctx context.Context, payload ReportPayload) services.PlagiarismRequest {
	attachments := make([]models.Attachment, 0, len(payload.Attachments)+len(payload.AttachmentRefs))
	for _, a := range payload.Attachments {
		attachments = append(attachments, models.Attachment{ID: a.ID, Filename: a.Filename, Bytes: a.Bytes})
	}
	if len(payload.AttachmentRefs) > 0 && p.loader != nil {
		attachments = append(attachments, p.loader.Load(ctx, payload.AttachmentRefs)...)
	}

	return services.PlagiarismRequest{
		SimilarityRequest: services.SimilarityRequest{
			ArticleID:   payload.ArticleID,
			Title:       payload.Title,
			Content:     payload.Content,
			Attachments: attachments,
			WebDocs:     payload.WebDocs,
			SearchWeb:   payload.SearchWeb,
			Threshold:   payload.Threshold,
			TopN:        payload.TopN,
		},
		ExternalReport: payload.ExternalReport,
	}
}

func isLastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}
