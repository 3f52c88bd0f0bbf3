package http

import (
	"github.com/gin-gonic/gin"

	"github.com/kitchenstock/scanner/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if cfg.Server.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = cfg.Server.MaxUploadBytes
	}

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		scans := v1.Group("/scans")
		scans.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
		scans.Use(BodyLimitMiddleware(cfg.Server.MaxUploadBytes))
		{
			scans.POST("/delivery", handler.ScanDelivery)
			scans.POST("/recipe", handler.ScanRecipe)
			scans.POST("/confirm", handler.ConfirmScan)
		}

		corrections := v1.Group("/corrections")
		{
			corrections.GET("", handler.ListCorrections)
			corrections.GET("/lookup", handler.LookupCorrection)
			corrections.POST("", handler.RecordCorrection)
		}
	}

	return router
}
