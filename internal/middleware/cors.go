package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// exposedHeaders lets browser clients read rate-limit state.
const exposedHeaders = "X-RateLimit-Limit, X-RateLimit-Remaining, Retry-After"

// Origins is a parsed CORS allow-list. Empty or containing "*" allows every origin.
type Origins map[string]bool

// ParseOrigins parses "*" or a comma-separated list (e.g. "http://localhost:3000,https://fasticket.app").
func ParseOrigins(s string) Origins {
	m := make(Origins)
	for _, o := range strings.Split(strings.TrimSpace(s), ",") {
		if o = strings.TrimSpace(o); o != "" {
			m[o] = true
		}
	}
	return m
}

// AllowsAll reports whether any origin is accepted.
func (o Origins) AllowsAll() bool { return len(o) == 0 || o["*"] }

// Allows reports whether origin is accepted.
func (o Origins) Allows(origin string) bool { return o.AllowsAll() || o[origin] }

// CORS returns a middleware that sets CORS headers for cross-origin requests.
func CORS(allowedOrigins string) gin.HandlerFunc {
	origins := ParseOrigins(allowedOrigins)
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowOrigin := ""
		switch {
		case origins.AllowsAll():
			allowOrigin = "*"
		case origin != "" && origins[origin]:
			allowOrigin = origin
			c.Header("Vary", "Origin")
		}
		if allowOrigin != "" {
			c.Header("Access-Control-Allow-Origin", allowOrigin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Expose-Headers", exposedHeaders)
			c.Header("Access-Control-Max-Age", "86400")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
