package middleware

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestRequestLoggerMiddleware(t *testing.T) {
	buf := captureLogs(t)

	router := gin.New()
	router.Use(RequestID())
	router.Use(RequestLogger())
	router.Use(UserScope())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	router.GET("/error", func(c *gin.Context) {
		c.Error(errors.New("missing field"))
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
	})
	router.GET("/server-error", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	})

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		logLevel       string
	}{
		{"success request", "/test", http.StatusOK, "INFO"},
		{"client error", "/error", http.StatusBadRequest, "WARN"},
		{"server error", "/server-error", http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()

			req := httptest.NewRequest("GET", tt.path, nil)
			req.Header.Set(UserIDHeader, "tester")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			logOutput := buf.String()
			if !strings.Contains(logOutput, "request completed") {
				t.Error("Expected 'request completed' in log")
			}
			if !strings.Contains(logOutput, tt.path) {
				t.Errorf("Expected path '%s' in log", tt.path)
			}
			if !strings.Contains(logOutput, tt.logLevel) {
				t.Errorf("Expected log level '%s' in log", tt.logLevel)
			}
			if !strings.Contains(logOutput, "user_id=tester") {
				t.Error("Expected user_id in log")
			}
			if !strings.Contains(logOutput, "request_id=") {
				t.Error("Expected request_id in log")
			}
		})
	}

	buf.Reset()
	req := httptest.NewRequest("GET", "/error", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)
	if !strings.Contains(buf.String(), "missing field") {
		t.Error("Expected handler errors in log")
	}
}

func TestRequestLoggerWithQuery(t *testing.T) {
	buf := captureLogs(t)

	router := gin.New()
	router.Use(RequestLogger())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	req := httptest.NewRequest("GET", "/test?foo=bar&baz=qux", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), "query") {
		t.Error("Expected query parameters in log")
	}
}

func TestRequestLoggerQuietsHealthChecks(t *testing.T) {
	buf := captureLogs(t)

	router := gin.New()
	router.Use(RequestLogger())
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	if buf.Len() != 0 {
		t.Errorf("Expected health check to stay below info level, got %s", buf.String())
	}
}
