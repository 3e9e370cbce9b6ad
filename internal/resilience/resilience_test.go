package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errModel = errors.New("model failed")

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, RecoveryTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Call(func() error { return errModel }), errModel)
	}
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, int64(1), cb.Opens())

	called := false
	err := cb.Call(func() error { called = true; return nil })
	require.Error(t, err)
	assert.False(t, called)

	var cbErr *CircuitBreakerError
	require.ErrorAs(t, err, &cbErr)
	assert.Equal(t, StateOpen, cbErr.State)
}

func TestCircuitBreakerSuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2})

	_ = cb.Call(func() error { return errModel })
	assert.Equal(t, 1, cb.Failures())
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, 0, cb.Failures())
	_ = cb.Call(func() error { return errModel })
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeout: 10 * time.Second, SuccessThreshold: 2})
	cb.now = func() time.Time { return now }

	_ = cb.Call(func() error { return errModel })
	require.Equal(t, StateOpen, cb.State())

	now = now.Add(11 * time.Second)
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 5, RecoveryTimeout: time.Second})
	cb.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		_ = cb.Call(func() error { return errModel })
	}
	now = now.Add(2 * time.Second)

	assert.ErrorIs(t, cb.Call(func() error { return errModel }), errModel)
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, int64(2), cb.Opens())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreakerRegistryConcurrentGet(t *testing.T) {
	registry := NewCircuitBreakerRegistry(CircuitBreakerConfig{FailureThreshold: 1})

	var wg sync.WaitGroup
	got := make([]*CircuitBreaker, 32)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = registry.Get("dna_pattern")
		}(i)
	}
	wg.Wait()

	for _, cb := range got {
		assert.Same(t, got[0], cb)
	}

	_ = registry.Get("temporal").Call(func() error { return errModel })
	assert.Equal(t, []string{"dna_pattern", "temporal"}, registry.Names())

	stats := registry.GetStats()
	assert.Equal(t, StateOpen, stats["temporal"].State)
	assert.Equal(t, StateClosed, stats["dna_pattern"].State)

	registry.ResetAll()
	assert.Equal(t, StateClosed, registry.Get("temporal").State())
}

func TestStateText(t *testing.T) {
	text, err := StateHalfOpen.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "half_open", string(text))
	assert.Equal(t, "critical", LevelCritical.String())
}

func TestDegradationLevels(t *testing.T) {
	dm := NewDegradationManager(DegradationConfig{DegradedThreshold: 0.2, CriticalThreshold: 0.5, Window: 10}, nil)

	for i := 0; i < 8; i++ {
		dm.RecordSuccess("industry")
	}
	health, ok := dm.GetModelHealth("industry")
	require.True(t, ok)
	assert.Equal(t, LevelNormal, health.Level)
	assert.Nil(t, health.DegradedSince)

	dm.RecordFailure("industry", errModel)
	dm.RecordFailure("industry", errModel)
	health, _ = dm.GetModelHealth("industry")
	assert.Equal(t, LevelDegraded, health.Level)
	assert.InDelta(t, 0.2, health.FailureRate, 1e-9)
	assert.Equal(t, "model failed", health.LastError)
	assert.NotNil(t, health.DegradedSince)

	for i := 0; i < 3; i++ {
		dm.RecordFailure("industry", errModel)
	}
	health, _ = dm.GetModelHealth("industry")
	assert.Equal(t, LevelCritical, health.Level)
	assert.Equal(t, LevelCritical, dm.OverallLevel())

	// the window slides so enough successes bring it back
	for i := 0; i < 10; i++ {
		dm.RecordSuccess("industry")
	}
	health, _ = dm.GetModelHealth("industry")
	assert.Equal(t, LevelNormal, health.Level)
	assert.Equal(t, int64(23), health.Invocations)
	assert.Equal(t, int64(5), health.Failures)
	assert.Zero(t, health.FailureRate)
}

func TestDegradationReset(t *testing.T) {
	dm := NewDegradationManager(DefaultDegradationConfig(), nil)
	dm.RecordFailure("temporal", errModel)
	assert.Len(t, dm.GetAllModelHealth(), 1)

	dm.ResetModel("temporal")
	_, ok := dm.GetModelHealth("temporal")
	assert.False(t, ok)
	assert.Equal(t, LevelNormal, dm.OverallLevel())
}

func TestRetryWithConfig(t *testing.T) {
	errTransient := errors.New("busy")
	fast := RetryConfig{MaxAttempts: 4, Backoff: Backoff{Initial: time.Millisecond, Factor: 2}}
	onlyTransient := fast
	onlyTransient.Retryable = func(err error) bool { return errors.Is(err, errTransient) }

	tests := []struct {
		name        string
		config      RetryConfig
		failures    int
		fail        error
		wantCalls   int
		wantRetries int
		wantErr     error
	}{
		{"succeeds first time", fast, 0, nil, 1, 0, nil},
		{"recovers after transient failures", fast, 2, errTransient, 3, 2, nil},
		{"gives up after max attempts", fast, 10, errTransient, 4, 3, errTransient},
		{"stops on non-retryable error", onlyTransient, 10, errModel, 1, 0, errModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls, retries := 0, 0
			cfg := tt.config
			cfg.OnRetry = func(attempt int, err error, _ time.Duration) {
				retries++
				assert.Equal(t, calls, attempt)
				assert.ErrorIs(t, err, tt.fail)
			}
			err := RetryWithConfig(context.Background(), cfg, func(context.Context) error {
				calls++
				if calls <= tt.failures {
					return tt.fail
				}
				return nil
			})
			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantRetries, retries)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestRetryStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := RetryWithConfig(ctx, RetryConfig{MaxAttempts: 5, Backoff: Backoff{Initial: time.Hour}}, func(context.Context) error {
		calls++
		cancel()
		return errModel
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, errModel)

	err = RetryWithConfig(ctx, RetryConfig{MaxAttempts: 2}, func(context.Context) error {
		t.Fatal("fn must not run after cancellation")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: 300 * time.Millisecond, Factor: 2}

	assert.Equal(t, 100*time.Millisecond, b.Delay(0))
	assert.Equal(t, 200*time.Millisecond, b.Delay(1))
	assert.Equal(t, 300*time.Millisecond, b.Delay(2))

	b.Jitter = true
	d := b.Delay(0)
	assert.GreaterOrEqual(t, d, 100*time.Millisecond)
	assert.Less(t, d, 110*time.Millisecond)

	assert.Equal(t, 50*time.Millisecond, Backoff{Initial: 50 * time.Millisecond}.Delay(3), "factor below 1 keeps the delay flat")
}
