package middleware

import (
	"context"

	"github.com/fakesociety/RentGuard360/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader is both read from callers and echoed back
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 64

// RequestID middleware tags each request with an ID. A caller supplied ID
// is kept when it is short and printable, otherwise a UUID is generated.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if !usableRequestID(requestID) {
			requestID = uuid.NewString()
		}

		c.Header(RequestIDHeader, requestID)
		c.Set("request_id", requestID)

		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func usableRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// GetRequestID gets the request ID from gin context
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		return requestID.(string)
	}
	return ""
}
