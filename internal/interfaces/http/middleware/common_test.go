package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	tests := []struct {
		name     string
		header   string
		preserve bool
	}{
		{"generated when missing", "", false},
		{"propagated from header", "req-123", true},
		{"oversized header replaced", strings.Repeat("a", MaxRequestIDLength+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDKey, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			id := w.Header().Get(RequestIDKey)
			assert.Equal(t, id, w.Body.String())
			if tt.preserve {
				assert.Equal(t, tt.header, id)
			} else {
				assert.Len(t, id, 32)
			}
		})
	}
}

func TestCORSWithConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(cfg CORSConfig) *gin.Engine {
		router := gin.New()
		router.Use(CORSWithConfig(cfg))
		router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
		return router
	}
	allowed := DefaultCORSConfig()
	allowed.AllowOrigins = []string{"http://localhost:3000"}

	tests := []struct {
		name        string
		cfg         CORSConfig
		method      string
		origin      string
		status      int
		allowOrigin string
	}{
		{"no origins configured", DefaultCORSConfig(), "GET", "http://localhost:3000", http.StatusOK, ""},
		{"preflight without origins", DefaultCORSConfig(), "OPTIONS", "http://localhost:3000", http.StatusNoContent, ""},
		{"allowed origin", allowed, "GET", "http://localhost:3000", http.StatusOK, "http://localhost:3000"},
		{"allowed preflight", allowed, "OPTIONS", "http://localhost:3000", http.StatusNoContent, "http://localhost:3000"},
		{"unknown origin", allowed, "GET", "http://evil.example", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/test", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.method == "OPTIONS" {
				req.Header.Set("Access-Control-Request-Method", "GET")
			}
			w := httptest.NewRecorder()
			newRouter(tt.cfg).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.allowOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestSecure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Secure())
	router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}
