package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/monitoring"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newFallbackLimiter(t *testing.T, cfg Config) (*RateLimiter, *monitoring.Metrics) {
	t.Helper()
	metrics := monitoring.NewMetrics()
	rl := NewRateLimiter(nil, cfg, metrics)
	t.Cleanup(rl.Close)
	return rl, metrics
}

func TestFallbackAllowsLimitPlusBurst(t *testing.T) {
	rl, metrics := newFallbackLimiter(t, Config{IPLimitPerMin: 5, Burst: 2})
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return frozen }
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		result, err := rl.AllowIP(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d", i+1)
		assert.Equal(t, 5, result.Limit)
		assert.Equal(t, 6-i, result.Remaining)
	}

	result, err := rl.AllowIP(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.InDelta(t, float64(12*time.Second), float64(result.RetryAfter), float64(time.Millisecond))

	// a denied check must not consume a token
	rl.now = func() time.Time { return frozen.Add(13 * time.Second) }
	result, err = rl.AllowIP(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	assert.Equal(t, int64(9), metrics.GetRateLimitStats()["fallback_count"])
}

func TestFallbackKeysAreIndependent(t *testing.T) {
	rl, _ := newFallbackLimiter(t, Config{IPLimitPerMin: 1})
	ctx := context.Background()

	first, err := rl.AllowIP(ctx, "a")
	require.NoError(t, err)
	assert.True(t, first.Allowed)

	blocked, err := rl.AllowIP(ctx, "a")
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)

	other, err := rl.AllowIP(ctx, "b")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	endpoint, err := rl.AllowEndpoint(ctx, "predict", "a", 1)
	require.NoError(t, err)
	assert.True(t, endpoint.Allowed)
}

func TestRedisErrorFallsBackToMemory(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	metrics := monitoring.NewMetrics()
	rl := NewRateLimiter(&RedisClient{client: client, enabled: true, addr: "127.0.0.1:1"}, Config{IPLimitPerMin: 3}, metrics)
	t.Cleanup(rl.Close)

	result, err := rl.AllowIP(context.Background(), "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	stats := metrics.GetRateLimitStats()
	assert.Equal(t, int64(1), stats["redis_errors"])
	assert.Equal(t, int64(1), stats["fallback_count"])
	assert.Equal(t, true, rl.GetStats()["redis_enabled"])
}

func TestCancelledContext(t *testing.T) {
	rl, _ := newFallbackLimiter(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rl.AllowIP(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSweepEvictsIdleBuckets(t *testing.T) {
	rl, _ := newFallbackLimiter(t, Config{IdleEviction: time.Minute})
	start := time.Now()
	rl.now = func() time.Time { return start }

	_, _ = rl.AllowIP(context.Background(), "idle")
	rl.now = func() time.Time { return start.Add(50 * time.Second) }
	_, _ = rl.AllowIP(context.Background(), "busy")

	assert.Equal(t, 1, rl.sweep(start.Add(90*time.Second)))
	assert.Equal(t, 1, rl.GetStats()["fallback_limiters"])
}

func TestConcurrentChecksNeverExceedBudget(t *testing.T) {
	rl, _ := newFallbackLimiter(t, Config{IPLimitPerMin: 20, Burst: 0})
	frozen := time.Now()
	rl.now = func() time.Time { return frozen }

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if result, err := rl.AllowIP(context.Background(), "shared"); err == nil && result.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(20), allowed.Load())
}

func TestIPRateLimitMiddleware(t *testing.T) {
	rl, metrics := newFallbackLimiter(t, Config{IPLimitPerMin: 2})

	router := gin.New()
	router.POST("/api/v1/predict", rl.IPRateLimitMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	var codes []int
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", nil)
		req.RemoteAddr = "192.0.2.7:5000"
		router.ServeHTTP(last, req)
		codes = append(codes, last.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "30", last.Header().Get("Retry-After"))
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))
	assert.Contains(t, last.Body.String(), "rate_limit")
	assert.Equal(t, int64(1), metrics.GetRateLimitStats()["ip_blocks"])
}

func TestEndpointRateLimitMiddleware(t *testing.T) {
	rl, metrics := newFallbackLimiter(t, Config{IPLimitPerMin: 100})

	router := gin.New()
	router.GET("/api/v1/predictions", rl.EndpointRateLimitMiddleware("predictions", 1), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	get := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/predictions", nil)
		req.RemoteAddr = "192.0.2.9:5000"
		router.ServeHTTP(w, req)
		return w
	}

	first := get()
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Endpoint-Limit"))
	assert.Empty(t, first.Header().Get("X-RateLimit-Limit"))

	second := get()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))

	stats := metrics.GetRateLimitStats()
	assert.Equal(t, int64(0), stats["ip_blocks"])
	assert.Equal(t, map[string]int64{"predictions": 1}, stats["endpoint_blocks"])
}

func TestRateLimitStatusHandler(t *testing.T) {
	rl, _ := newFallbackLimiter(t, Config{IPLimitPerMin: 42})

	router := gin.New()
	router.GET("/api/v1/ratelimit", rl.HandleRateLimitStatus())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ratelimit", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"limit":42`)
	assert.Contains(t, w.Body.String(), `"redis_enabled":false`)
}

func TestNewRedisClient(t *testing.T) {
	ctx := context.Background()

	disabled, err := NewRedisClient(ctx, RedisOptions{})
	require.NoError(t, err)
	assert.False(t, disabled.IsEnabled())
	assert.ErrorIs(t, disabled.HealthCheck(ctx), ErrRedisDisabled)
	assert.NoError(t, disabled.Close())
	assert.Equal(t, false, disabled.GetPoolStats()["enabled"])

	unreachable, err := NewRedisClient(ctx, RedisOptions{Addr: "127.0.0.1:1", ConnectAttempts: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.False(t, unreachable.IsEnabled())
	assert.NoError(t, unreachable.Close())

	var nilClient *RedisClient
	assert.False(t, nilClient.IsEnabled())
	assert.NoError(t, nilClient.Close())
}
