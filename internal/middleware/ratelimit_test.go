package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func limitedRouter(cfg RateLimiterConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(cfg))
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return router
}

func hit(router *gin.Engine, ip string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Forwarded-For", ip)
	router.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitBurstThenRejects(t *testing.T) {
	router := limitedRouter(RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 3})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(router, "10.0.0.1"), "request %d", i)
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(router, "10.0.0.1"))
}

func TestRateLimitIsolatesClients(t *testing.T) {
	router := limitedRouter(RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 1})

	assert.Equal(t, http.StatusOK, hit(router, "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit(router, "10.0.0.1"))

	// A second client has its own bucket.
	assert.Equal(t, http.StatusOK, hit(router, "10.0.0.2"))
}

func TestServiceRateLimitIsGlobal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ServiceRateLimitMiddleware(1, 2))
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	assert.Equal(t, http.StatusOK, hit(router, "10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit(router, "10.0.0.2"))
	assert.Equal(t, http.StatusTooManyRequests, hit(router, "10.0.0.3"))
}
