package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/captionloom/caption-server/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// RateLimit throttles requests per client IP. Authenticated administrators
// are exempt; isAdmin is consulted once per request that carries a user ID.
func RateLimit(limiter *ratelimit.Limiter, isAdmin func(ctx context.Context, userID string) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		admin := false
		if userID, exists := c.Get(ContextUserID); exists {
			if id, ok := userID.(string); ok && id != "" {
				admin = isAdmin(c.Request.Context(), id)
			}
		}

		limited := limiter.IsLimited(ip, admin)

		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(ip)))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(limiter.ResetTime(ip).Unix(), 10))

		if limited {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
