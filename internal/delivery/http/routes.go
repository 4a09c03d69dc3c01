package http

import (
	"github.com/codmatch/backend/config"
	"github.com/gin-gonic/gin"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/normalize", handler.Normalize)
		v1.POST("/match", handler.Match)

		catalog := v1.Group("/catalog")
		{
			catalog.POST("/lookup", handler.LookupCatalog)
			catalog.GET("/duplicates", handler.Duplicates)
		}
	}

	return router
}
