package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"bai2-engine/internal/middleware"
)

// HealthCheck reports readiness. A nil check means the process is healthy once it serves.
type HealthCheck func() error

// NewRouter wires the API routes behind the standard middleware chain.
func NewRouter(conversions *ConversionHandler, health HealthCheck) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())

	router.GET("/health", func(c *gin.Context) {
		if health != nil {
			if err := health(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")
	{
		convert := v1.Group("/convert")
		{
			convert.POST("", conversions.Convert)
			convert.POST("/pdf", conversions.ConvertPDF)
			convert.POST("/object", conversions.ConvertObject)
		}

		runs := v1.Group("/runs")
		{
			runs.GET("", conversions.ListRuns)
			runs.GET("/:run_id", conversions.GetRun)
			runs.GET("/:run_id/bai2", conversions.DownloadBAI2)
		}
	}

	return router
}
