package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"conversation-service/internal/repositories"
)

// RateLimit caps requests per authenticated user (or client IP) inside a fixed window.
// Counter failures let the request through.
func RateLimit(counter repositories.RateLimitRepository, scope string, limit int, window time.Duration, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if counter == nil || limit <= 0 {
			c.Next()
			return
		}

		subject := c.GetString(UserIDKey)
		if subject == "" {
			subject = c.ClientIP()
		}
		key := "ratelimit:" + scope + ":" + subject

		count, err := counter.Increment(c.Request.Context(), key, window)
		if err != nil {
			logger.Warn("rate limit check failed", "key", key, "err", err)
			c.Next()
			return
		}

		remaining := limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if int(count) > limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
