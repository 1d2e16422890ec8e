package main

import (
	"context"
	"log"

	"github.com/hibiken/asynq"

	"mindradix-similarity/internal/app"
	"mindradix-similarity/internal/config"
	"mindradix-similarity/internal/logger"
	"mindradix-similarity/internal/queue"
	"mindradix-similarity/internal/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	if cfg.TracingEnabled {
		shutdownTracer, err := telemetry.InitTracer(telemetry.TracerName+"-worker", cfg.OTLPEndpoint, cfg.GinMode)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			defer shutdownTracer()
		}
	}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to initialize services:", err)
	}
	defer a.Close()

	// Redis options for Asynq
	redisOpt, err := config.RedisOptions(cfg)
	if err != nil {
		log.Fatal("Invalid Redis configuration:", err)
	}
	asynqRedis := asynq.RedisClientOpt{
		Addr:      redisOpt.Addr,
		Password:  redisOpt.Password,
		DB:        redisOpt.DB,
		TLSConfig: redisOpt.TLSConfig,
	}

	// Create Asynq server
	server := asynq.NewServer(
		asynqRedis,
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				queue.QueueCritical: 6,
				queue.QueueDefault:  3,
				queue.QueueLow:      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				logger.Error("Task failed", "type", task.Type(), "retried", retried, "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(a.Runner, a.Attachments, a.Reports)
	mux := asynq.NewServeMux()
	processor.Register(mux)

	logger.Info("Starting Asynq worker",
		"concurrency", cfg.WorkerConcurrency,
		"queues", "critical(6), default(3), low(1)",
		"redis", asynqRedis.Addr,
	)

	// Start the server
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
