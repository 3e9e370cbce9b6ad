package ratelimit

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HandleRateLimitStatus returns the limits that apply to the requesting IP
//
//	@Summary	Rate limit status
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/api/v1/ratelimit [get]
func (rl *RateLimiter) HandleRateLimitStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gin.H{
			"ip": c.ClientIP(),
			"limits": gin.H{
				"ip_per_minute": gin.H{
					"limit":  rl.config.IPLimitPerMin,
					"burst":  rl.config.Burst,
					"period": "1 minute",
				},
			},
			"limiter":   rl.GetStats(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}

		if rl.metrics != nil {
			status["metrics"] = rl.metrics.GetRateLimitStats()
		}

		c.JSON(http.StatusOK, status)
	}
}
