package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/resilience"
)

// ErrRedisDisabled is returned by HealthCheck when no server is in use.
var ErrRedisDisabled = errors.New("redis is disabled")

// RedisOptions describes the shared limiter store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// PoolSize defaults to 10; the limiter issues one command per request.
	PoolSize int
	// ConnectAttempts bounds the startup ping; defaults to 3.
	ConnectAttempts int
}

// RedisClient is the limiter's view of redis. A disabled client is valid
// and makes the limiter fall back to in-process buckets.
type RedisClient struct {
	client  *redis.Client
	enabled bool
	addr    string
}

// NewRedisClient connects to opts.Addr. An empty address returns a disabled
// client and no error. A server that never answers the startup ping returns a
// disabled client together with the ping error, so callers may carry on.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*RedisClient, error) {
	if opts.Addr == "" {
		return &RedisClient{}, nil
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 10
	}
	if opts.ConnectAttempts <= 0 {
		opts.ConnectAttempts = 3
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		MaxRetries:   1,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		PoolSize:     opts.PoolSize,
		MinIdleConns: 1,
		PoolTimeout:  time.Second,
	})

	retry := resilience.RetryConfig{
		MaxAttempts: opts.ConnectAttempts,
		Backoff:     resilience.Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Factor: 2, Jitter: true},
		OnRetry: func(attempt int, err error, wait time.Duration) {
			slog.Warn("Redis ping failed, retrying", "addr", opts.Addr, "attempt", attempt, "wait", wait, "error", err)
		},
	}
	err := resilience.RetryWithConfig(ctx, retry, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return client.Ping(pingCtx).Err()
	})
	if err != nil {
		_ = client.Close()
		return &RedisClient{addr: opts.Addr}, fmt.Errorf("redis %s unreachable after %d attempts: %w", opts.Addr, opts.ConnectAttempts, err)
	}

	slog.Info("Redis rate limit store connected", "addr", opts.Addr, "db", opts.DB)
	return &RedisClient{client: client, enabled: true, addr: opts.Addr}, nil
}

// GetClient returns the underlying client, nil when disabled.
func (r *RedisClient) GetClient() *redis.Client {
	return r.client
}

// IsEnabled reports whether limits are shared through redis.
func (r *RedisClient) IsEnabled() bool {
	return r != nil && r.enabled
}

// HealthCheck pings the server.
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	if !r.IsEnabled() {
		return ErrRedisDisabled
	}
	return r.client.Ping(ctx).Err()
}

// Close releases the pool. Safe on a disabled or nil client.
func (r *RedisClient) Close() error {
	if !r.IsEnabled() {
		return nil
	}
	return r.client.Close()
}

// GetPoolStats reports pool usage for /metrics.
func (r *RedisClient) GetPoolStats() map[string]interface{} {
	if !r.IsEnabled() {
		return map[string]interface{}{"enabled": false}
	}

	ps := r.client.PoolStats()
	return map[string]interface{}{
		"enabled":     true,
		"addr":        r.addr,
		"hits":        ps.Hits,
		"misses":      ps.Misses,
		"timeouts":    ps.Timeouts,
		"total_conns": ps.TotalConns,
		"idle_conns":  ps.IdleConns,
	}
}
