package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// internalKeyHeader carries the shared secret for service-to-service
// calls on the /internal surface.
const internalKeyHeader = "X-Internal-API-Key"

// InternalAuthMiddleware validates the internal API key header against
// the configured secret in constant time. An empty configured key means
// the server is misconfigured, and every internal request is refused
// with 500 rather than silently letting traffic through.
func InternalAuthMiddleware(apiKey string) gin.HandlerFunc {
	if apiKey == "" {
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "server misconfigured: internal API key not set",
			})
		}
	}
	want := []byte(apiKey)

	return func(c *gin.Context) {
		got := []byte(c.GetHeader(internalKeyHeader))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}
		c.Next()
	}
}
