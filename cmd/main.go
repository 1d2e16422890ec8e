package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"mindradix-similarity/internal/app"
	"mindradix-similarity/internal/auth"
	"mindradix-similarity/internal/config"
	"mindradix-similarity/internal/logger"
	"mindradix-similarity/internal/queue"
	"mindradix-similarity/internal/scheduler"
	"mindradix-similarity/internal/telemetry"
	"mindradix-similarity/middleware"
	"mindradix-similarity/routes"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	if cfg.TracingEnabled {
		shutdownTracer, err := telemetry.InitTracer(telemetry.TracerName, cfg.OTLPEndpoint, cfg.GinMode)
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

	// Queue client, only when Redis answered
	var enqueuer queue.Enqueuer
	if a.Redis != nil {
		redisOpt, err := config.RedisOptions(cfg)
		if err != nil {
			log.Fatal("Invalid Redis configuration:", err)
		}
		client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisOpt.Addr, Password: redisOpt.Password, DB: redisOpt.DB, TLSConfig: redisOpt.TLSConfig})
		defer client.Close()
		enqueuer = client
	} else {
		logger.Warn("No report queue, asynchronous checks run in-process")
	}

	var tokens *auth.ServiceTokens
	if cfg.ServiceTokenSecret != "" {
		tokens, err = auth.NewServiceTokens(cfg.ServiceTokenSecret, a.Redis)
		if err != nil {
			log.Fatal("Invalid service token secret:", err)
		}
	}

	// Retention sweep
	sched := scheduler.New()
	if err := a.Retention.Schedule(sched, cfg.RetentionCron); err != nil {
		log.Fatal("Invalid RETENTION_CRON:", err)
	}
	sched.Start()
	defer sched.Stop()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.MetricsMiddleware(a.Metrics))
	router.Use(middleware.RequestSizeLimit(cfg.MaxUploadSize))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader, "Content-Disposition"}
	router.Use(cors.New(corsConfig))

	routes.SetupHealthRoutes(router, func(ctx context.Context) error {
		if a.Mongo == nil {
			return nil
		}
		return a.Mongo.Ping(ctx, nil)
	})

	handler := routes.NewReportHandler(cfg, a.Similarity, a.Plagiarism, a.Reports, a.Export, a.Runner, a.Attachments, enqueuer)
	router.Use(middleware.RateLimitMiddleware(a.Redis, cfg))
	router.Use(middleware.EnrichTrace())
	routes.SetupReportRoutes(router, handler, middleware.ServiceAuth(tokens))

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
