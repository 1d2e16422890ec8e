package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"mindradix-similarity/internal/logger"
	"mindradix-similarity/models"
)

const defaultDownloadTimeout = 30 * time.Second

// AttachmentLoader downloads attachments referenced by URL.
type AttachmentLoader struct {
	httpClient *http.Client
	maxBytes   int64
}

func NewAttachmentLoader(maxBytes int64) *AttachmentLoader {
	return &AttachmentLoader{
		httpClient: &http.Client{Timeout: defaultDownloadTimeout},
		maxBytes:   maxBytes,
	}
}

// Load fetches every reference concurrently. A reference that cannot be
// downloaded is kept with empty bytes so it still shows up in the report.
func (l *AttachmentLoader) Load(ctx context.Context, refs []models.AttachmentRef) []models.Attachment {
	out := make([]models.Attachment, len(refs))
	var g errgroup.Group
	g.SetLimit(4)
	for i, ref := range refs {
		g.Go(func() error {
			out[i] = models.Attachment{ID: ref.ID, Filename: ref.Filename}
			data, err := l.download(ctx, ref.URL)
			if err != nil {
				logger.Warn("Attachment download failed", "id", ref.ID, "url", ref.URL, "error", err)
				return nil
			}
			out[i].Bytes = data
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (l *AttachmentLoader) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	reader := io.Reader(resp.Body)
	if l.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, l.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if l.maxBytes > 0 && int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("attachment exceeds %d bytes", l.maxBytes)
	}
	return data, nil
}
