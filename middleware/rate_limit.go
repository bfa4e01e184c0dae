package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fakesociety/RentGuard360/pkg/logger"
	"github.com/gin-gonic/gin"
)

// RateLimiter is a fixed-window counter per client key
type RateLimiter struct {
	mu        sync.Mutex
	tokens    map[string]int
	lastReset time.Time
	rate      int           // requests per window
	window    time.Duration // time window
	now       func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:    make(map[string]int),
		lastReset: time.Now(),
		rate:      rate,
		window:    window,
		now:       time.Now,
	}
}

// Allow counts one request for key. When the key is over its limit it
// returns false and the time left until the window resets.
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastReset) > l.window {
		l.tokens = make(map[string]int)
		l.lastReset = now
	}

	if l.tokens[key] >= l.rate {
		return false, l.window - now.Sub(l.lastReset)
	}
	l.tokens[key]++
	return true, 0
}

// RateLimit middleware limits requests per client IP. A non-positive rate
// disables limiting.
func RateLimit(rate int, window time.Duration) gin.HandlerFunc {
	if rate <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := NewRateLimiter(rate, window)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		ok, wait := limiter.Allow(clientIP)
		if !ok {
			logger.Warn(c.Request.Context(), "rate limit exceeded", "client_ip", clientIP)

			c.Header("Retry-After", strconv.Itoa(int(wait.Round(time.Second)/time.Second)+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}

		c.Next()
	}
}
