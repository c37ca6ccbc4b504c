package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestBodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(limit int64) *gin.Engine {
		router := gin.New()
		router.Use(BodyLimit(limit))
		router.POST("/test", func(c *gin.Context) {
			if _, err := io.ReadAll(c.Request.Body); err != nil {
				c.String(http.StatusRequestEntityTooLarge, "too large")
				return
			}
			c.String(http.StatusOK, "ok")
		})
		return router
	}

	tests := []struct {
		name          string
		limit         int64
		body          string
		contentLength int64
		expected      int
	}{
		{"within limit", 1024, "small body", 10, http.StatusOK},
		{"content length over limit", 100, strings.Repeat("x", 200), 200, http.StatusRequestEntityTooLarge},
		{"streamed body over limit", 10, strings.Repeat("x", 50), -1, http.StatusRequestEntityTooLarge},
		{"limit disabled", 0, strings.Repeat("x", 50), 50, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/test", bytes.NewReader([]byte(tt.body)))
			req.ContentLength = tt.contentLength
			w := httptest.NewRecorder()
			newRouter(tt.limit).ServeHTTP(w, req)

			assert.Equal(t, tt.expected, w.Code)
		})
	}

	t.Run("rejection uses the error envelope", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/test", strings.NewReader(strings.Repeat("x", 200)))
		w := httptest.NewRecorder()
		newRouter(100).ServeHTTP(w, req)

		assert.JSONEq(t, `{"success":false,"error":{"code":"ERR_REQUEST_TOO_LARGE","message":"Request body exceeds maximum allowed size"}}`, w.Body.String())
	})
}
