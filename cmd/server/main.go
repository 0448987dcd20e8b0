package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/1llyaa/subtitles-api/internal/cache"
	"github.com/1llyaa/subtitles-api/internal/config"
	handler "github.com/1llyaa/subtitles-api/internal/delivery/http"
	"github.com/1llyaa/subtitles-api/internal/diagnostics"
	"github.com/1llyaa/subtitles-api/internal/events"
	"github.com/1llyaa/subtitles-api/internal/runner"
	"github.com/1llyaa/subtitles-api/internal/scheduler"
	"github.com/1llyaa/subtitles-api/internal/storage"
	"github.com/1llyaa/subtitles-api/internal/store"
	"github.com/1llyaa/subtitles-api/internal/store/memory"
	"github.com/1llyaa/subtitles-api/internal/store/postgres"
	"github.com/1llyaa/subtitles-api/internal/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting subtitles API server")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	// Startup diagnostics: a missing whisper binary fails fast.
	report := diagnostics.NewChecker().Run(cfg.Whisper.BinaryPath, cfg.Whisper.FFProbePath, cfg.Storage.Root)
	for _, item := range report.Items {
		if item.Status == diagnostics.StatusFail {
			logger.Warn("Diagnostic check failed", zap.String("check", item.Name), zap.String("message", item.Message), zap.String("hint", item.Hint))
		}
	}
	if report.HasFailures {
		logger.Fatal("Startup diagnostics failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	healthChecks := map[string]handler.HealthCheck{}

	// Job store: PostgreSQL when configured, in-memory otherwise.
	var jobStore store.JobStore
	if cfg.Database.URL != "" {
		dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
		}
		defer dbPool.Close()
		if err := dbPool.Ping(ctx); err != nil {
			logger.Fatal("Failed to ping PostgreSQL", zap.Error(err))
		}
		logger.Info("Connected to PostgreSQL")
		jobStore = postgres.New(dbPool)
		healthChecks["postgres"] = dbPool.Ping
	} else {
		logger.Info("DATABASE_URL not set, using in-memory job store")
		jobStore = memory.New()
	}

	// Blob storage: MinIO when configured, local disk otherwise.
	var blobs storage.BlobStore
	if cfg.Minio.Endpoint != "" {
		minioStore, err := storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			logger.Fatal("Failed to connect to MinIO", zap.Error(err))
		}
		logger.Info("Connected to MinIO", zap.String("bucket", cfg.Minio.Bucket))
		blobs = minioStore
	} else {
		localStore, err := storage.NewLocalStore(cfg.Storage.Root)
		if err != nil {
			logger.Fatal("Failed to open local blob store", zap.Error(err))
		}
		blobs = localStore
	}

	// Result cache: Redis when configured.
	var results cache.ResultCache = cache.Noop{}
	if cfg.Redis.URL != "" {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Fatal("Failed to parse Redis URL", zap.Error(err))
		}
		rdb := redis.NewClient(redisOpts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to ping Redis", zap.Error(err))
		}
		logger.Info("Connected to Redis")
		results = cache.NewRedisCache(rdb, cfg.Redis.TTL)
		healthChecks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	// Event publisher: RabbitMQ when configured.
	var pub events.Publisher = events.Noop{}
	if cfg.RabbitMQ.URL != "" {
		rabbitPub, err := events.NewRabbitMQPublisher(cfg.RabbitMQ.URL, logger)
		if err != nil {
			logger.Fatal("Failed to initialize RabbitMQ publisher", zap.Error(err))
		}
		defer rabbitPub.Close()
		logger.Info("Connected to RabbitMQ")
		pub = rabbitPub
	}

	// Runner and scheduler
	whisperRunner := runner.New(cfg.Whisper.BinaryPath, cfg.Whisper.FFProbePath, blobs, results, logger)
	sched := scheduler.New(jobStore, whisperRunner, pub, logger, scheduler.Config{
		MaxConcurrency: cfg.Jobs.MaxConcurrency,
		QueueCapacity:  cfg.Jobs.QueueCapacity,
		JobTimeout:     cfg.Jobs.Timeout,
	})
	sched.Start(ctx)

	// Retention janitor
	janitor := store.NewJanitor(jobStore, cfg.Jobs.Retention, time.Hour, logger)
	go janitor.Run(ctx)

	// Initialize use cases
	submitUC := usecase.NewSubmitJobUsecase(jobStore, blobs, sched, pub, logger)
	getJobUC := usecase.NewGetJobUsecase(jobStore, logger)
	cancelUC := usecase.NewCancelJobUsecase(sched, logger)
	resultUC := usecase.NewFetchResultUsecase(jobStore, blobs, logger)

	// Initialize router
	router := handler.NewRouter(handler.RouterDeps{
		SubmitUC:        submitUC,
		GetJobUC:        getJobUC,
		CancelUC:        cancelUC,
		ResultUC:        resultUC,
		Blobs:           blobs,
		HealthChecks:    healthChecks,
		Logger:          logger,
		RateLimitPerMin: cfg.Server.RateLimit,
		MaxUploadBytes:  cfg.Server.MaxUploadBytes,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("API server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	logger.Info("Shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Let in-flight runs record their outcomes before exit.
	sched.Stop()

	logger.Info("API server stopped")
}
