package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/monitoring"
)

// Config holds rate limiter configuration
type Config struct {
	IPLimitPerMin   int           // requests per minute per client IP
	Burst           int           // extra tokens the in-memory bucket may hold
	IdleEviction    time.Duration // fallback buckets unused for this long are dropped
	CleanupInterval time.Duration
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		IPLimitPerMin:   60,
		Burst:           10,
		IdleEviction:    10 * time.Minute,
		CleanupInterval: time.Minute,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.IPLimitPerMin <= 0 {
		c.IPLimitPerMin = def.IPLimitPerMin
	}
	if c.Burst < 0 {
		c.Burst = 0
	}
	if c.IdleEviction <= 0 {
		c.IdleEviction = def.IdleEviction
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = def.CleanupInterval
	}
	return c
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter provides distributed rate limiting with Redis and in-memory fallback
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *RedisClient
	config       Config
	metrics      *monitoring.Metrics

	fallbackLimiters map[string]*bucket
	fallbackMutex    sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewRateLimiter creates a new rate limiter. A nil or disabled redis client
// selects the in-memory limiter. Close stops the background sweep.
func NewRateLimiter(redisClient *RedisClient, config Config, metrics *monitoring.Metrics) *RateLimiter {
	if redisClient == nil {
		redisClient = &RedisClient{}
	}

	rl := &RateLimiter{
		redisClient:      redisClient,
		config:           config.withDefaults(),
		metrics:          metrics,
		fallbackLimiters: make(map[string]*bucket),
		stop:             make(chan struct{}),
		now:              time.Now,
	}

	if redisClient.IsEnabled() {
		rl.redisLimiter = redis_rate.NewLimiter(redisClient.GetClient())
		slog.Info("Redis rate limiter initialized")
	} else {
		slog.Warn("Redis unavailable, using in-memory rate limiting only")
	}

	go rl.cleanupFallbackLimiters()

	return rl
}

// AllowIP checks the per-minute budget of a client IP
func (rl *RateLimiter) AllowIP(ctx context.Context, ip string) (*Result, error) {
	return rl.allow(ctx, "ratelimit:ip:"+ip, rl.config.IPLimitPerMin, time.Minute)
}

// AllowEndpoint checks a per-minute budget for one endpoint and IP pair
func (rl *RateLimiter) AllowEndpoint(ctx context.Context, endpoint, ip string, limit int) (*Result, error) {
	key := fmt.Sprintf("ratelimit:endpoint:%s:%s", endpoint, ip)
	return rl.allow(ctx, key, limit, time.Minute)
}

// allow performs the actual rate limit check using Redis or fallback
func (rl *RateLimiter) allow(ctx context.Context, key string, limit int, period time.Duration) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if rl.redisLimiter != nil && rl.redisClient.IsEnabled() {
		result, err := rl.allowRedis(ctx, key, limit, period)
		if err == nil {
			return result, nil
		}
		slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
		if rl.metrics != nil {
			rl.metrics.IncrementRateLimitRedisError()
		}
	}

	if rl.metrics != nil {
		rl.metrics.IncrementRateLimitFallback()
	}
	return rl.allowFallback(key, limit, period), nil
}

// allowRedis uses the GCRA limiter shared by every replica
func (rl *RateLimiter) allowRedis(ctx context.Context, key string, limit int, period time.Duration) (*Result, error) {
	res, err := rl.redisLimiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   limit,
		Burst:  limit,
		Period: period,
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	result := &Result{
		Allowed:   res.Allowed > 0,
		Limit:     res.Limit.Rate,
		Remaining: res.Remaining,
		ResetAt:   rl.now().Add(res.ResetAfter),
	}
	if !result.Allowed {
		result.RetryAfter = res.RetryAfter
	}

	return result, nil
}

// allowFallback uses a per-key in-memory token bucket
func (rl *RateLimiter) allowFallback(key string, limit int, period time.Duration) *Result {
	now := rl.now()

	rl.fallbackMutex.Lock()
	b, exists := rl.fallbackLimiters[key]
	if !exists {
		every := rate.Limit(float64(limit) / period.Seconds())
		b = &bucket{limiter: rate.NewLimiter(every, limit+rl.config.Burst)}
		rl.fallbackLimiters[key] = b
	}
	b.lastSeen = now
	rl.fallbackMutex.Unlock()

	result := &Result{
		Limit:   limit,
		ResetAt: now.Add(period),
	}

	if b.limiter.AllowN(now, 1) {
		result.Allowed = true
		result.Remaining = max(0, int(b.limiter.TokensAt(now)))
		return result
	}

	// Reserve only to learn the wait, then hand the token back.
	reservation := b.limiter.ReserveN(now, 1)
	if reservation.OK() {
		result.RetryAfter = reservation.DelayFrom(now)
		reservation.CancelAt(now)
	} else {
		result.RetryAfter = period
	}
	result.ResetAt = now.Add(result.RetryAfter)

	return result
}

// cleanupFallbackLimiters periodically removes idle fallback buckets
func (rl *RateLimiter) cleanupFallbackLimiters() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			if n := rl.sweep(rl.now()); n > 0 {
				slog.Debug("Evicted idle fallback rate limiters", "count", n)
			}
		}
	}
}

func (rl *RateLimiter) sweep(now time.Time) int {
	rl.fallbackMutex.Lock()
	defer rl.fallbackMutex.Unlock()

	evicted := 0
	for key, b := range rl.fallbackLimiters {
		if now.Sub(b.lastSeen) > rl.config.IdleEviction {
			delete(rl.fallbackLimiters, key)
			evicted++
		}
	}
	return evicted
}

// Close stops the background sweep
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Config returns the effective configuration
func (rl *RateLimiter) Config() Config {
	return rl.config
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.fallbackMutex.Lock()
	fallbackCount := len(rl.fallbackLimiters)
	rl.fallbackMutex.Unlock()

	stats := map[string]interface{}{
		"redis_enabled":     rl.redisClient.IsEnabled(),
		"fallback_limiters": fallbackCount,
		"ip_limit_per_min":  rl.config.IPLimitPerMin,
	}

	if rl.redisClient.IsEnabled() {
		stats["redis_pool"] = rl.redisClient.GetPoolStats()
	}

	return stats
}
