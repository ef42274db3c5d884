package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fasticket/backend/pkg/ratelimit"
	"github.com/fasticket/backend/pkg/response"
)

// Limiter counts hits per key.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (ratelimit.Decision, error)
}

// RateLimit limits requests per authenticated user (client IP when anonymous) under the given scope.
// Call after JWT. Limiter errors let the request through.
func RateLimit(limiter Limiter, scope string, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		key := scope + ":ip:" + c.ClientIP()
		if userID, ok := UserID(c); ok {
			key = scope + ":user:" + userID.String()
		}
		d, err := limiter.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			response.TooManyRequests(c, "too many requests, try again later", d.RetryAfter)
			c.Abort()
			return
		}
		c.Next()
	}
}
