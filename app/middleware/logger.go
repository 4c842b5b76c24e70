package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hookfleet/pkg/logger"
)

// Logger logs one line per request through the ops API
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		// Skip logging for 404 requests
		if c.Writer.Status() == http.StatusNotFound {
			return
		}

		logger.InfoCtx(c.Request.Context(), "[GIN] %3d | %13v | %15s | %s | %s",
			c.Writer.Status(),
			time.Since(startTime),
			c.ClientIP(),
			c.Request.Method,
			c.Request.RequestURI,
		)
	}
}
