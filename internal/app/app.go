// Package app wires the shared components of the API server and the worker.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"mindradix-similarity/internal/audit"
	"mindradix-similarity/internal/config"
	"mindradix-similarity/internal/crawler"
	"mindradix-similarity/internal/extractor"
	"mindradix-similarity/internal/logger"
	"mindradix-similarity/internal/similarity"
	"mindradix-similarity/internal/telemetry"
	"mindradix-similarity/services"
)

// App holds every long-lived dependency.
type App struct {
	Config  *config.Config
	Metrics *telemetry.Metrics
	Redis   *redis.Client
	Mongo   *mongo.Client

	Similarity  *services.SimilarityService
	Plagiarism  *services.PlagiarismService
	Reports     services.ReportStore
	Export      *services.ExportService
	Retention   *services.RetentionService
	Runner      *services.CheckRunner
	Attachments *services.AttachmentLoader
}

// New connects to Redis and MongoDB and builds the services. Redis is
// optional; without it the page cache and rate limiting are disabled.
// REPORT_STORE=memory keeps reports in process, for local runs.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}
	a.Metrics = metrics

	if cfg.RedisURL != "" {
		rdb, err := config.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, continuing without cache", "error", err)
		} else {
			a.Redis = rdb
		}
	}

	if cfg.ReportStore != "memory" {
		client, err := config.ConnectMongoDB(cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Mongo = client
		a.Reports = services.NewMongoReportStore(client.Database(cfg.DBName), metrics)
	} else {
		logger.Warn("Reports are kept in memory and lost on restart")
		a.Reports = services.NewMemoryReportStore()
	}

	ext := extractor.New(extractor.NewPDFParser(), extractor.WithObserver(func(format string, elapsed time.Duration, err error) {
		metrics.RecordExtraction(format, elapsed.Seconds(), err == nil)
	}))

	searcher, err := crawler.NewSearcher(ctx, cfg, metrics)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create searcher: %w", err)
	}
	var cache crawler.PageCache
	if a.Redis != nil && cfg.PageCacheTTL > 0 {
		cache = crawler.NewRedisPageCache(a.Redis, cfg.PageCacheTTL)
	}
	fetcher := crawler.NewFetcherFromConfig(cfg, searcher, cache, metrics)

	a.Similarity = services.NewSimilarityService(cfg, ext, similarity.NewEngine(cfg.TFIDFMaxTerms), fetcher, metrics)
	a.Plagiarism = services.NewPlagiarismService(a.Similarity, audit.New(nil), metrics)
	a.Export = services.NewExportService(cfg.FileStorageDir)
	a.Retention = services.NewRetentionService(a.Reports, a.Export, cfg.ReportRetentionDays)
	a.Runner = services.NewCheckRunner(a.Similarity, a.Plagiarism, a.Reports, a.Export)
	a.Attachments = services.NewAttachmentLoader(cfg.MaxAttachmentSize)
	return a, nil
}

// Close releases connections. It is safe to call on a partially built App.
func (a *App) Close() {
	if a.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Mongo.Disconnect(ctx); err != nil {
			logger.Warn("MongoDB disconnect failed", "error", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Warn("Redis close failed", "error", err)
		}
	}
}
