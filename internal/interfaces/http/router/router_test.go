package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cravings/printagent/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	jobs := NewDomainGroup("print", "/print")
	jobs.GET("/jobs", func(c *gin.Context) { c.String(http.StatusOK, "jobs") })
	jobs.PUT("/settings", func(c *gin.Context) { c.String(http.StatusOK, "saved") })
	nav := NewDomainGroup("navigation", "/navigations")
	nav.POST("", func(c *gin.Context) { c.String(http.StatusAccepted, "deny") })

	r.Register(jobs, nav).Setup()

	tests := []struct {
		method string
		path   string
		status int
		body   string
	}{
		{"GET", "/api/v1/print/jobs", http.StatusOK, "jobs"},
		{"PUT", "/api/v1/print/settings", http.StatusOK, "saved"},
		{"POST", "/api/v1/navigations", http.StatusAccepted, "deny"},
		{"GET", "/api/v1/navigations", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestDomainGroup(t *testing.T) {
	g := NewDomainGroup("status", "/status")
	assert.Equal(t, "status", g.Name())
	assert.Equal(t, "/status", g.Prefix())

	engine := gin.New()
	g.Use(func(c *gin.Context) {
		c.Header("X-Test-Middleware", "applied")
		c.Next()
	})
	g.POST("/update", func(c *gin.Context) { c.String(http.StatusAccepted, "ok") })
	g.RegisterRoutes(engine.Group("/api/v1"))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/status/update", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "applied", w.Header().Get("X-Test-Middleware"))
}

func TestNewEngine(t *testing.T) {
	engine := NewEngine(EngineConfig{
		CORS:        middleware.DefaultCORSConfig(),
		MaxBodySize: 16,
		Tracing:     middleware.TracingConfig{Enabled: false},
		Registerer:  prometheus.NewRegistry(),
	}, zap.NewNop())
	engine.POST("/echo", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	engine.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("POST", "/echo", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDKey))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
