package services

import (
	"context"
	"time"

	"mindradix-similarity/internal/logger"
	"mindradix-similarity/internal/scheduler"
	"mindradix-similarity/utils"
)

const retentionJobTag = "report-retention"

// RetentionService removes report records and their workbooks once they
// are older than the retention window.
type RetentionService struct {
	store  ReportStore
	export *ExportService
	maxAge time.Duration
	now    func() time.Time
}

func NewRetentionService(store ReportStore, export *ExportService, retentionDays int) *RetentionService {
	return &RetentionService{
		store:  store,
		export: export,
		maxAge: time.Duration(retentionDays) * 24 * time.Hour,
		now:    time.Now,
	}
}

// Purge runs one sweep and returns how many records were removed.
func (r *RetentionService) Purge(ctx context.Context) (int, error) {
	cutoff := r.now().UTC().Add(-r.maxAge)
	expired, err := r.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, rec := range expired {
		if err := r.export.Remove(rec.ReportStoragePath); err != nil {
			logger.Warn("Failed to remove report export", "id", rec.ID, "path", rec.ReportStoragePath, "error", err)
		}
	}
	if len(expired) > 0 {
		logger.Info("Expired reports purged", "count", len(expired), "cutoff", cutoff.Format(time.RFC3339))
	}
	return len(expired), nil
}

// Schedule registers the sweep on s. A non-positive retention disables it.
func (r *RetentionService) Schedule(s *scheduler.Scheduler, cronExpr string) error {
	if r.maxAge <= 0 {
		logger.Info("Report retention disabled")
		return nil
	}
	return s.ScheduleCron(retentionJobTag, cronExpr, func() error {
		ctx, cancel := utils.WithLongTimeout(context.Background())
		defer cancel()
		_, err := r.Purge(ctx)
		return err
	})
}
