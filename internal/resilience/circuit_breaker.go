package resilience

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// CircuitBreakerState represents the state of the circuit breaker
type CircuitBreakerState int32

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// MarshalText renders the state by name in JSON payloads
func (s CircuitBreakerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold"` // consecutive failures before opening
	RecoveryTimeout  time.Duration `json:"recovery_timeout"`  // time to wait before a half-open probe
	SuccessThreshold int           `json:"success_threshold"` // half-open successes needed to close
}

// CircuitBreaker stops invoking a model that keeps failing and probes it
// again after a cool-down.
type CircuitBreaker struct {
	config      CircuitBreakerConfig
	state       atomic.Int32
	failures    atomic.Int32
	successes   atomic.Int32
	nextAttempt atomic.Int64 // unix nanos
	opens       atomic.Int64
	now         func() time.Time
}

// NewCircuitBreaker creates a circuit breaker, filling zero config values
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout == 0 {
		config.RecoveryTimeout = 30 * time.Second
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 1
	}

	return &CircuitBreaker{config: config, now: time.Now}
}

// Call executes fn unless the circuit is open
func (cb *CircuitBreaker) Call(fn func() error) error {
	state := cb.State()

	if state == StateOpen {
		if cb.now().UnixNano() < cb.nextAttempt.Load() {
			return NewCircuitBreakerError("circuit breaker is open", state)
		}
		// only one caller wins the transition to half-open
		if cb.state.CompareAndSwap(int32(StateOpen), int32(StateHalfOpen)) {
			cb.successes.Store(0)
		}
	}

	if err := fn(); err != nil {
		cb.onFailure()
		return err
	}
	cb.onSuccess()
	return nil
}

func (cb *CircuitBreaker) onFailure() {
	cb.successes.Store(0)
	failures := cb.failures.Add(1)

	if cb.State() == StateHalfOpen || failures >= int32(cb.config.FailureThreshold) {
		cb.nextAttempt.Store(cb.now().Add(cb.config.RecoveryTimeout).UnixNano())
		if prev := cb.state.Swap(int32(StateOpen)); prev != int32(StateOpen) {
			cb.opens.Add(1)
		}
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.failures.Store(0)

	if cb.State() == StateHalfOpen {
		if cb.successes.Add(1) >= int32(cb.config.SuccessThreshold) {
			cb.state.CompareAndSwap(int32(StateHalfOpen), int32(StateClosed))
		}
	}
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() CircuitBreakerState {
	return CircuitBreakerState(cb.state.Load())
}

// Failures returns the current consecutive failure count
func (cb *CircuitBreaker) Failures() int {
	return int(cb.failures.Load())
}

// Opens returns how many times the breaker has tripped
func (cb *CircuitBreaker) Opens() int64 {
	return cb.opens.Load()
}

// Reset resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.state.Store(int32(StateClosed))
	cb.failures.Store(0)
	cb.successes.Store(0)
	cb.nextAttempt.Store(0)
}

// CircuitBreakerError represents an error from the circuit breaker
type CircuitBreakerError struct {
	Message string
	State   CircuitBreakerState
}

func (e *CircuitBreakerError) Error() string {
	return e.Message
}

// NewCircuitBreakerError creates a new circuit breaker error
func NewCircuitBreakerError(message string, state CircuitBreakerState) *CircuitBreakerError {
	return &CircuitBreakerError{
		Message: message,
		State:   state,
	}
}

// BreakerStats is a point-in-time view of one breaker
type BreakerStats struct {
	State    CircuitBreakerState `json:"state"`
	Failures int                 `json:"failures"`
	Opens    int64               `json:"opens"`
}

// CircuitBreakerRegistry manages one breaker per model name
type CircuitBreakerRegistry struct {
	mu       sync.RWMutex
	config   CircuitBreakerConfig
	breakers map[string]*CircuitBreaker
}

// NewCircuitBreakerRegistry creates a registry whose breakers share config
func NewCircuitBreakerRegistry(config CircuitBreakerConfig) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		config:   config,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for name, creating it on first use
func (r *CircuitBreakerRegistry) Get(name string) *CircuitBreaker {
	r.mu.RLock()
	breaker, exists := r.breakers[name]
	r.mu.RUnlock()
	if exists {
		return breaker
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if breaker, exists := r.breakers[name]; exists {
		return breaker
	}
	breaker = NewCircuitBreaker(r.config)
	r.breakers[name] = breaker
	return breaker
}

// ResetAll resets all circuit breakers
func (r *CircuitBreakerRegistry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, breaker := range r.breakers {
		breaker.Reset()
	}
}

// Names lists the registered breakers in order
func (r *CircuitBreakerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetStats returns statistics for all circuit breakers
func (r *CircuitBreakerRegistry) GetStats() map[string]BreakerStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]BreakerStats, len(r.breakers))
	for name, breaker := range r.breakers {
		stats[name] = BreakerStats{
			State:    breaker.State(),
			Failures: breaker.Failures(),
			Opens:    breaker.Opens(),
		}
	}
	return stats
}
