package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/contactly/contactly/internal/ratelimit"
	appErrors "github.com/contactly/contactly/pkg/errors"
	"github.com/contactly/contactly/pkg/logger"
	"github.com/contactly/contactly/pkg/metrics"
	"github.com/contactly/contactly/pkg/response"
)

// RateLimit bounds request frequency per authenticated user. It must run
// after Auth so the identity is known; limiter backend failures fail open so
// a Redis outage degrades to unlimited rather than unavailable.
func RateLimit(limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		userID := c.GetString(CtxUserIDKey)
		if userID == "" {
			response.Error(c, appErrors.ErrUnauthenticated)
			c.Abort()
			return
		}

		decision, err := limiter.Allow(c.Request.Context(), userID)
		if err != nil {
			logger.WithModule("ratelimit").Warn("limiter unavailable, allowing request",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(decision.RetryAfter.Seconds())))

		if !decision.Allowed {
			metrics.RateLimitDecisions.WithLabelValues("deny").Inc()
			response.Error(c, appErrors.ErrRateLimited)
			c.Abort()
			return
		}

		metrics.RateLimitDecisions.WithLabelValues("allow").Inc()
		c.Next()
	}
}
