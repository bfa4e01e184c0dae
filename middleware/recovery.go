package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"
	"syscall"

	"github.com/fakesociety/RentGuard360/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Recovery turns a panic in a handler into a 500 carrying the request ID.
// http.ErrAbortHandler is re-raised so net/http can drop the connection,
// and a client that already hung up gets no response body.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			ctx := c.Request.Context()
			if err, ok := rec.(error); ok && clientGone(err) {
				logger.Warn(ctx, "client connection lost", "path", c.Request.URL.Path, "error", err)
				c.Abort()
				return
			}

			logger.Error(ctx, "panic recovered",
				"error", rec,
				"method", c.Request.Method,
				"route", c.FullPath(),
				"contract_id", c.Param("id"),
				"stack", string(debug.Stack()),
			)

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":      "Internal server error",
				"request_id": GetRequestID(c),
			})
		}()

		c.Next()
	}
}

func clientGone(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}
