package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/1llyaa/subtitles-api/internal/delivery/http/middleware"
	"github.com/1llyaa/subtitles-api/internal/storage"
	"github.com/1llyaa/subtitles-api/internal/usecase"
)

// RouterDeps bundles everything the router needs.
type RouterDeps struct {
	SubmitUC *usecase.SubmitJobUsecase
	GetJobUC *usecase.GetJobUsecase
	CancelUC *usecase.CancelJobUsecase
	ResultUC *usecase.FetchResultUsecase
	Blobs    storage.BlobStore

	HealthChecks map[string]HealthCheck

	Logger          *zap.Logger
	RateLimitPerMin int
	MaxUploadBytes  int64
}

// NewRouter creates and configures the Gin router with all routes and middleware.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger(deps.Logger))

	// Metrics endpoint (no rate limiting)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Health check (no rate limiting)
		healthHandler := NewHealthHandler(deps.HealthChecks, deps.Logger)
		v1.GET("/health", healthHandler.Health)

		// Models
		modelHandler := NewModelHandler()
		v1.GET("/models", modelHandler.List)

		// Jobs
		jobHandler := NewJobHandler(deps.SubmitUC, deps.GetJobUC, deps.CancelUC, deps.ResultUC, deps.Blobs, deps.Logger)
		v1.POST("/jobs",
			middleware.RateLimiter(deps.RateLimitPerMin),
			middleware.BodySizeLimit(deps.MaxUploadBytes),
			jobHandler.Submit,
		)
		v1.GET("/jobs/:id", jobHandler.GetByID)
		v1.DELETE("/jobs/:id", jobHandler.Cancel)
		v1.GET("/jobs/:id/result", jobHandler.Result)

		// WebSocket for real-time updates
		wsHandler := NewWebSocketHandler(deps.GetJobUC, deps.Logger)
		v1.GET("/jobs/:id/stream", wsHandler.Stream)
	}

	return router
}
