package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/fakesociety/RentGuard360/pkg/logger"
	"github.com/gin-gonic/gin"
)

const (
	// UserIDHeader carries the caller identity set by the fronting gateway
	UserIDHeader = "X-User-ID"
	// AnonymousUser is the scope used when no identity is supplied
	AnonymousUser = "anonymous"
)

// User IDs end up in object keys, so they are limited to a safe alphabet.
var validUserID = regexp.MustCompile(`^[A-Za-z0-9._@-]{1,128}$`)

// UserScope scopes every request to the caller named in X-User-ID.
// Authentication happens upstream; this only rejects malformed identities.
func UserScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserIDHeader)
		if userID == "" {
			userID = AnonymousUser
		}
		if !validUserID.MatchString(userID) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid " + UserIDHeader + " header"})
			return
		}

		c.Set("user_id", userID)

		ctx := context.WithValue(c.Request.Context(), logger.UserIDKey, userID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetUserID gets the caller's user scope from context
func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get("user_id"); exists {
		return userID.(string)
	}
	return AnonymousUser
}
