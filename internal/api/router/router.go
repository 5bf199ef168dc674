package router

import (
	"net/http"

	"github.com/cuongbtq/thumbnailer/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	serviceName := deps.ServiceName
	if serviceName == "" {
		serviceName = "thumbnail-api-service"
	}

	r.GET("/health", func(c *gin.Context) {
		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": serviceName,
					"error":   err.Error(),
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": serviceName,
		})
	})

	thumbnailHandler := handler.NewThumbnailHandler(deps)

	v1 := r.Group("/api/v1")
	{
		// POST /api/v1/thumbnails - Enqueue a thumbnail job
		v1.POST("/thumbnails", thumbnailHandler.EnqueueThumbnails)

		// GET /api/v1/renditions - List recorded renditions with pagination
		v1.GET("/renditions", thumbnailHandler.ListRenditions)
	}

	return r
}
