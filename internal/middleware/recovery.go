package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bai2-engine/pkg/logger"
	"bai2-engine/pkg/response"
)

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.GetLogger().WithFields(map[string]interface{}{
					"error":      err,
					"request_id": c.GetString(response.RequestIDKey),
					"path":       c.Request.URL.Path,
				}).Error("Panic recovered")
				response.InternalError(c, "Internal server error", "An unexpected error occurred")
				c.Abort()
			}
		}()
		c.Next()
	}
}

// ErrorHandler answers with the error envelope when a handler recorded an error but wrote nothing.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			logger.GetLogger().WithError(err.Err).WithField("request_id", c.GetString(response.RequestIDKey)).Error("Request error")

			if !c.Writer.Written() && c.Writer.Status() == http.StatusOK {
				response.InternalError(c, "Request failed", err.Error())
			}
		}
	}
}
