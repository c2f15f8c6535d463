// Package upstream guards calls to the generation provider.
package upstream

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"svgcache-api/internal/metrics"
)

// ErrOpen is returned without calling upstream while the breaker is open or
// the half-open probe budget is exhausted.
var ErrOpen = errors.New("upstream: circuit breaker open")

// CircuitBreaker wraps gobreaker with defaults suited to slow, billable API calls.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	Name         string
	MaxRequests  uint32        // Requests allowed in half-open state
	Interval     time.Duration // Cyclic period for clearing counters
	Timeout      time.Duration // Time to wait before half-open
	FailureRatio float64       // Ratio of failures to trip
	MinRequests  uint32        // Min requests before evaluating ratio

	// IsSuccessful classifies a returned error. Errors it accepts do not count
	// toward tripping. Nil means only a nil error is a success.
	IsSuccessful func(err error) bool
}

// DefaultCircuitConfig returns the defaults used for the generation provider.
func DefaultCircuitConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// NewCircuitBreaker creates a circuit breaker with the given config.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:         cfg.Name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		IsSuccessful: cfg.IsSuccessful,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Upstream breaker state changed", "name", name, "from", from.String(), "to", to.String())
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	}
	metrics.BreakerState.WithLabelValues(cfg.Name).Set(float64(gobreaker.StateClosed))
	return &CircuitBreaker{
		cb: gobreaker.NewCircuitBreaker(settings),
	}
}

// Execute runs fn through the breaker. A nil breaker runs fn directly.
func Execute[T any](c *CircuitBreaker, fn func() (T, error)) (T, error) {
	if c == nil || c.cb == nil {
		return fn()
	}
	var out T
	_, err := c.cb.Execute(func() (interface{}, error) {
		v, err := fn()
		out = v
		return nil, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return out, ErrOpen
	}
	return out, err
}

// State returns the breaker state name ("closed", "half-open", "open").
func (c *CircuitBreaker) State() string {
	if c == nil || c.cb == nil {
		return gobreaker.StateClosed.String()
	}
	return c.cb.State().String()
}

var breakers = struct {
	sync.RWMutex
	m map[string]*CircuitBreaker
}{
	m: make(map[string]*CircuitBreaker),
}

// GetBreaker returns or creates the shared breaker for name.
func GetBreaker(name string, isSuccessful func(error) bool) *CircuitBreaker {
	breakers.RLock()
	if cb, ok := breakers.m[name]; ok {
		breakers.RUnlock()
		return cb
	}
	breakers.RUnlock()

	breakers.Lock()
	defer breakers.Unlock()

	// Double-check after acquiring write lock
	if cb, ok := breakers.m[name]; ok {
		return cb
	}

	cfg := DefaultCircuitConfig(name)
	cfg.IsSuccessful = isSuccessful
	cb := NewCircuitBreaker(cfg)
	breakers.m[name] = cb
	return cb
}
