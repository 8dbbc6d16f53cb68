package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"rifftube/internal/logger"
)

// RequestLogger logs one line per request. Health checks and metric
// scrapes are skipped.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			return
		}

		fields := map[string]any{
			"method":  c.Request.Method,
			"path":    path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		}
		if c.Writer.Status() >= 500 {
			logger.Error("request", fields)
			return
		}
		logger.Info("request", fields)
	}
}
