package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()

	router := gin.New()
	router.Use(HTTPMetrics(reg))
	router.GET("/api/v1/print/jobs", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	for _, path := range []string{"/api/v1/print/jobs", "/api/v1/print/jobs", "/missing"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))
	}

	// One series for the matched route, one for unmatched paths.
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "printagent_http_server_request_total"))
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "printagent_http_server_request_duration_seconds"))
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "printagent_http_server_active_requests"))
}

func TestGetRoutePattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var route string
	router := gin.New()
	router.GET("/jobs/:id", func(c *gin.Context) { route = getRoutePattern(c) })
	router.NoRoute(func(c *gin.Context) { route = getRoutePattern(c) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/jobs/123", nil))
	assert.Equal(t, "/jobs/:id", route)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nope", nil))
	assert.Equal(t, "unknown", route)
}
