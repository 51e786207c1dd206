// internal/middleware/logging_middleware.go
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"card-print-service/internal/utils"
)

// LoggingMiddleware logs every request with its status and latency
func LoggingMiddleware(logger *utils.ServiceLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		duration := time.Since(startTime)

		logger.LogAPIRequest(
			c.Request.Method,
			c.Request.URL.Path,
			c.Request.UserAgent(),
			c.ClientIP(),
			c.Writer.Status(),
			duration,
		)

		if len(c.Errors) > 0 {
			utils.LoggerWithRequestID(logger.Logger, c.GetString("request_id")).
				Warn("Request completed with errors", zap.String("errors", c.Errors.String()))
		}
	}
}
