package resilience

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"interviewroom-backend/pkg/logger"
	"interviewroom-backend/pkg/metrics"
)

// CircuitBreakerState represents the state of the circuit breaker
type CircuitBreakerState string

const (
	CircuitBreakerClosed   CircuitBreakerState = "closed"
	CircuitBreakerHalfOpen CircuitBreakerState = "half_open"
	CircuitBreakerOpen     CircuitBreakerState = "open"
)

// ErrCircuitOpen is returned without calling the operation while the breaker is open
var ErrCircuitOpen = stderrors.New("service temporarily unavailable due to repeated failures (circuit breaker open)")

// permanentError marks a failure that retrying cannot fix
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so Execute returns it immediately without retrying
// and without counting it against the breaker.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Config tunes a Breaker
type Config struct {
	MaxAttempts      int
	InitialInterval  time.Duration
	MaxInterval      time.Duration
	Timeout          time.Duration
	FailureThreshold int
	CoolDown         time.Duration
}

// DefaultConfig returns the retry and breaker settings used for remote services
func DefaultConfig() Config {
	return Config{
		MaxAttempts:      3,
		InitialInterval:  100 * time.Millisecond,
		MaxInterval:      5 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 3,
		CoolDown:         10 * time.Second,
	}
}

// Breaker wraps remote operations with retry, timeout, and circuit breaker
type Breaker struct {
	name    string
	cfg     Config
	metrics *metrics.Metrics
	now     func() time.Time

	mu                  sync.Mutex
	state               CircuitBreakerState
	consecutiveFailures int
	openedAt            time.Time
}

// NewBreaker creates a closed breaker
func NewBreaker(name string, cfg Config, m *metrics.Metrics) *Breaker {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 1
	}
	return &Breaker{
		name:    name,
		cfg:     cfg,
		metrics: m,
		now:     time.Now,
		state:   CircuitBreakerClosed,
	}
}

// Execute runs fn with retry, timeout, and circuit breaker. fn receives a
// context bounded by the configured timeout.
func (b *Breaker) Execute(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if b.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}

	var lastErr error
	for attempt := 1; attempt <= b.cfg.MaxAttempts; attempt++ {
		if !b.allow() {
			logger.Warn("Circuit breaker is OPEN - request blocked",
				zap.String("breaker", b.name),
				zap.String("operation", operation))
			return ErrCircuitOpen
		}

		if attempt > 1 {
			logger.Warn("Remote operation retry",
				zap.String("breaker", b.name),
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
		}

		err := fn(ctx)
		if err == nil {
			b.onSuccess()
			return nil
		}

		var perm *permanentError
		if stderrors.As(err, &perm) {
			return perm.err
		}

		lastErr = err
		b.onFailure(operation, err)

		if attempt == b.cfg.MaxAttempts {
			break
		}

		backoff := time.Duration(attempt) * b.cfg.InitialInterval
		if b.cfg.MaxInterval > 0 && backoff > b.cfg.MaxInterval {
			backoff = b.cfg.MaxInterval
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s %s timed out: %w", b.name, operation, lastErr)
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("%s %s failed after %d attempts: %w", b.name, operation, b.cfg.MaxAttempts, lastErr)
}

// GetCircuitBreakerState returns the current circuit breaker state
func (b *Breaker) GetCircuitBreakerState() CircuitBreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// allow reports whether a call may proceed, moving an open breaker to
// half-open once the cool-down has passed.
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != CircuitBreakerOpen {
		return true
	}
	if b.now().Sub(b.openedAt) < b.cfg.CoolDown {
		return false
	}
	b.setState(CircuitBreakerHalfOpen)
	logger.Warn("Circuit breaker HALF-OPEN - allowing probe request", zap.String("breaker", b.name))
	return true
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	if b.state != CircuitBreakerClosed {
		b.setState(CircuitBreakerClosed)
		logger.Info("Circuit breaker CLOSED - recovered", zap.String("breaker", b.name))
	}
}

func (b *Breaker) onFailure(operation string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	if b.state == CircuitBreakerHalfOpen || b.consecutiveFailures >= b.cfg.FailureThreshold {
		if b.state != CircuitBreakerOpen {
			logger.Error("Circuit breaker OPEN - too many consecutive failures",
				zap.String("breaker", b.name),
				zap.String("operation", operation),
				zap.String("error_type", classifyError(err)),
				zap.Int("consecutive_failures", b.consecutiveFailures))
		}
		b.setState(CircuitBreakerOpen)
		b.openedAt = b.now()
	}
}

func (b *Breaker) setState(state CircuitBreakerState) {
	b.state = state
	switch state {
	case CircuitBreakerClosed:
		b.metrics.SetCircuitBreakerState(b.name, 0)
	case CircuitBreakerHalfOpen:
		b.metrics.SetCircuitBreakerState(b.name, 1)
	case CircuitBreakerOpen:
		b.metrics.SetCircuitBreakerState(b.name, 2)
	}
}

// classifyError classifies errors for logging
func classifyError(err error) string {
	if err == nil {
		return "none"
	}

	errMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline exceeded"):
		return "timeout"
	case strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "network unreachable"):
		return "network"
	case strings.Contains(errMsg, "no such host") || strings.Contains(errMsg, "dns"):
		return "dns"
	case strings.Contains(errMsg, "not found"):
		return "not_found"
	case strings.Contains(errMsg, "permission denied") || strings.Contains(errMsg, "access denied"):
		return "permission"
	default:
		return "unknown"
	}
}
