package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/AnirudhBhanot/flashnew-sub008/internal/errors"
)

// check runs one limiter decision for a client IP
type check func(ctx context.Context, ip string) (*Result, error)

// IPRateLimitMiddleware applies the per-IP budget
func (rl *RateLimiter) IPRateLimitMiddleware() gin.HandlerFunc {
	return rl.enforce("X-RateLimit", rl.AllowIP, func() {
		if rl.metrics != nil {
			rl.metrics.IncrementRateLimitIPBlock()
		}
	})
}

// EndpointRateLimitMiddleware applies a per-IP budget for one endpoint group,
// counted apart from the IP budget
func (rl *RateLimiter) EndpointRateLimitMiddleware(endpoint string, limit int) gin.HandlerFunc {
	allow := func(ctx context.Context, ip string) (*Result, error) {
		return rl.AllowEndpoint(ctx, endpoint, ip, limit)
	}
	return rl.enforce("X-RateLimit-Endpoint", allow, func() {
		if rl.metrics != nil {
			rl.metrics.IncrementRateLimitEndpoint(endpoint)
		}
	})
}

// enforce sets the limit headers under prefix and rejects when over budget.
// A limiter failure lets the request through.
func (rl *RateLimiter) enforce(prefix string, allow check, blocked func()) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := allow(c.Request.Context(), ip)
		if err != nil {
			slog.Error("Rate limit check failed", "ip", ip, "scope", prefix, "error", err)
			c.Next()
			return
		}

		c.Header(prefix+"-Limit", strconv.Itoa(result.Limit))
		c.Header(prefix+"-Remaining", strconv.Itoa(result.Remaining))
		c.Header(prefix+"-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if result.Allowed {
			c.Next()
			return
		}

		blocked()
		retryAfter := retryAfterSeconds(result)
		c.Header("Retry-After", retryAfter)
		appErr := apperrors.NewRateLimitError(retryAfter)
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
	}
}

// retryAfterSeconds rounds up so clients never retry too early
func retryAfterSeconds(result *Result) string {
	return strconv.Itoa(int(math.Max(1, math.Ceil(result.RetryAfter.Seconds()))))
}
