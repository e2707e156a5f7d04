package lingolive

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// RetryConfig configures caller-side retry policy. The session manager never
// retries internally; connection problems after a successful Connect surface
// through OnStatusChange and the caller decides what to do with them.
type RetryConfig struct {
	// MaxRetries is the number of retry attempts after the initial one.
	// Zero disables retries.
	MaxRetries int

	// BaseDelay is the delay before the first retry. Default: 1s.
	BaseDelay time.Duration

	// MaxDelay caps the backoff growth. Default: 30s.
	MaxDelay time.Duration

	// Multiplier scales the delay after each failed attempt. Default: 2.0.
	Multiplier float64

	// Jitter randomizes each delay by ±(delay * Jitter) to spread retries
	// from many clients apart. Default: 0.1.
	Jitter float64

	// RetryableErrors decides whether an error is worth another attempt.
	// If nil, every error is retried.
	RetryableErrors func(error) bool
}

// DefaultRetryConfig returns the policy used by ConnectWithRetry when the
// caller has no opinion: three attempts, exponential backoff, and no retry on
// validation failures.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.1,
		RetryableErrors: func(err error) bool {
			// Configuration and validation problems never fix themselves.
			var configErr *ConfigError
			if errors.As(err, &configErr) {
				return false
			}
			var connErr *ConnectionError
			var sendErr *SendError
			return errors.As(err, &connErr) || errors.As(err, &sendErr)
		},
	}
}

// RetryableOperation is an operation WithRetry can re-run safely.
type RetryableOperation func() error

// WithRetry runs op until it succeeds, exhausts the configured attempts, hits
// a non-retryable error, or the context ends.
func WithRetry(ctx context.Context, config RetryConfig, op RetryableOperation) error {
	var lastErr error

	for attempt := 0; ; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if config.RetryableErrors != nil && !config.RetryableErrors(lastErr) {
			return fmt.Errorf("non-retryable error: %w", lastErr)
		}
		if attempt >= config.MaxRetries {
			return fmt.Errorf("operation failed after %d attempts: %w", attempt+1, lastErr)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(calculateDelay(attempt, config)):
		}
	}
}

// calculateDelay computes the backoff before retry number attempt+1.
func calculateDelay(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.BaseDelay) * math.Pow(config.Multiplier, float64(attempt))
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	if config.Jitter > 0 {
		spread := delay * config.Jitter
		delay += rand.Float64()*2*spread - spread
	}
	return time.Duration(delay)
}

// ConnectWithRetry builds a fresh Manager per attempt and connects it,
// retrying setup failures per the retry configuration. A Manager cannot be
// re-connected, so each attempt replaces the previous instance wholesale; the
// failed instance is fully stopped before the next attempt starts.
func ConnectWithRetry(ctx context.Context, cfg Config, req ConnectRequest, retryConfig RetryConfig) (*Manager, error) {
	var mgr *Manager
	err := WithRetry(ctx, retryConfig, func() error {
		m, err := New(cfg)
		if err != nil {
			return err
		}
		if err := m.Connect(ctx, req); err != nil {
			m.StopAll()
			return err
		}
		mgr = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mgr, nil
}

// CircuitBreakerConfig configures failure thresholds and recovery timing.
type CircuitBreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the circuit.
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays open before a trial
	// request is allowed through.
	RecoveryTimeout time.Duration

	// SuccessThreshold is the consecutive-success count that closes a
	// half-open circuit.
	SuccessThreshold int
}

// CircuitBreakerState is the current disposition of the breaker.
type CircuitBreakerState int

const (
	CircuitClosed CircuitBreakerState = iota
	CircuitOpen
	CircuitHalfOpen
)

// CircuitBreaker keeps a caller from hammering a service that keeps refusing
// sessions: after enough consecutive failures it rejects operations outright
// until a recovery window passes.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu          sync.Mutex
	state       CircuitBreakerState
	failures    int
	successes   int
	lastFailure time.Time
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{config: config, state: CircuitClosed}
}

// Execute runs op unless the circuit is open, and records the outcome.
func (cb *CircuitBreaker) Execute(op func() error) error {
	if !cb.allow() {
		return fmt.Errorf("circuit breaker is open")
	}

	if err := op(); err != nil {
		cb.record(false)
		return err
	}
	cb.record(true)
	return nil
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case CircuitClosed, CircuitHalfOpen:
		return true
	case CircuitOpen:
		if time.Since(cb.lastFailure) >= cb.config.RecoveryTimeout {
			cb.state = CircuitHalfOpen
			return true
		}
		return false
	}
	return false
}

func (cb *CircuitBreaker) record(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !success {
		cb.failures++
		cb.successes = 0
		cb.lastFailure = time.Now()
		if cb.failures >= cb.config.FailureThreshold {
			cb.state = CircuitOpen
		}
		return
	}
	cb.successes++
	cb.failures = 0
	if cb.state == CircuitHalfOpen && cb.successes >= cb.config.SuccessThreshold {
		cb.state = CircuitClosed
	}
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
