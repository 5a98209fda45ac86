package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cigarlens/backend/config"
)

// MetricsExporter records request metrics and serves the scrape endpoint
type MetricsExporter interface {
	RequestRecorder
	Handler() http.Handler
}

// SetupRouter creates and configures the Gin router. metrics may be nil.
func SetupRouter(cfg *config.Config, handler *Handler, metrics MetricsExporter, logger *zap.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger, metrics))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	if cfg.Metrics.Enabled && metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		recognize := v1.Group("/recognize")
		{
			recognize.POST("/image", handler.RecognizeImage)
			recognize.POST("/text", handler.RecognizeText)
		}

		v1.GET("/catalog/details", handler.GetCatalogDetails)
		v1.GET("/stats", handler.GetStats)
		v1.DELETE("/cache", handler.ClearCache)
	}

	return router
}
