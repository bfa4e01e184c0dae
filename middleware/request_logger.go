package middleware

import (
	"log/slog"
	"time"

	"github.com/fakesociety/RentGuard360/pkg/logger"
	"github.com/gin-gonic/gin"
)

// quietPaths are probed constantly and only logged at debug level
var quietPaths = map[string]bool{
	"/health": true,
}

// RequestLogger logs every request once it completes. Request IDs and user
// scope come from the request context set by the other middleware.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"status", status,
			"method", c.Request.Method,
			"path", path,
			"route", c.FullPath(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"bytes_in", c.Request.ContentLength,
			"bytes_out", c.Writer.Size(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		case quietPaths[path]:
			level = slog.LevelDebug
		}

		ctx := c.Request.Context()
		logger.WithContext(ctx).Log(ctx, level, "request completed", attrs...)
	}
}
