// Package clock tracks the elapsed live time of one interview against its budget.
package clock

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"interviewroom-backend/pkg/constants"
	"interviewroom-backend/pkg/logger"
)

// Store persists the start instant of an armed clock so that a reload of the
// owning session resumes the same budget instead of starting over.
type Store interface {
	SaveStart(ctx context.Context, sessionID string, start time.Time, ttl time.Duration) error
	// LoadStart reports ok=false when nothing is stored for the session.
	LoadStart(ctx context.Context, sessionID string) (start time.Time, ok bool, err error)
	ClearStart(ctx context.Context, sessionID string) error
}

// Clock is a single owned budget timer. It is armed only while a call is live.
type Clock struct {
	sessionID  string
	tick       time.Duration
	store      Store
	onExceeded func()
	now        func() time.Time

	mu          sync.Mutex
	armed       bool
	budget      time.Duration
	start       time.Time
	lastElapsed time.Duration
	fired       bool
	stop        chan struct{}
}

// Option configures a Clock
type Option func(*Clock)

// WithNow overrides the time source
func WithNow(now func() time.Time) Option {
	return func(c *Clock) {
		if now != nil {
			c.now = now
		}
	}
}

// WithTick overrides the polling cadence. A zero tick disables the background
// poller and leaves checking to Check.
func WithTick(tick time.Duration) Option {
	return func(c *Clock) {
		c.tick = tick
	}
}

// New creates a disarmed clock for sessionID. onExceeded is invoked at most
// once per arming, from the poller goroutine.
func New(sessionID string, store Store, onExceeded func(), opts ...Option) *Clock {
	c := &Clock{
		sessionID:  sessionID,
		tick:       constants.ClockTickInterval,
		store:      store,
		onExceeded: onExceeded,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Arm starts tracking against budget from now and persists the start
// instant, replacing anything stored for the session. Arming an armed clock
// is a no-op. Store failures are logged and the clock runs from memory.
func (c *Clock) Arm(ctx context.Context, budget time.Duration) {
	c.arm(ctx, budget, false)
}

// Resume is Arm for a session recovered after a restart: a start instant
// still persisted for the session is reused, so the budget keeps counting
// from the original join. Without one it behaves like Arm.
func (c *Clock) Resume(ctx context.Context, budget time.Duration) {
	c.arm(ctx, budget, true)
}

func (c *Clock) arm(ctx context.Context, budget time.Duration, resume bool) {
	c.mu.Lock()
	if c.armed {
		c.mu.Unlock()
		return
	}

	start := c.now()
	resumed := false
	if c.store != nil && resume {
		if saved, ok, err := c.store.LoadStart(ctx, c.sessionID); err != nil {
			logger.Warn("Failed to load clock start, starting fresh",
				zap.String("session_id", c.sessionID),
				zap.Error(err))
		} else if ok && !saved.After(start) {
			start = saved
			resumed = true
		}
	}
	if c.store != nil && !resumed {
		if err := c.store.SaveStart(ctx, c.sessionID, start, budget*constants.ClockStateTTLFactor); err != nil {
			logger.Warn("Failed to persist clock start",
				zap.String("session_id", c.sessionID),
				zap.Error(err))
		}
	}

	c.armed = true
	c.budget = budget
	c.start = start
	c.lastElapsed = 0
	c.fired = false
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	logger.Info("Session clock armed",
		zap.String("session_id", c.sessionID),
		zap.Duration("budget", budget),
		zap.Bool("resumed", resumed))

	if c.tick > 0 {
		go c.poll(stop)
	}
	// A resumed clock may already be past its budget.
	c.Check()
}

// Disarm stops tracking and clears the persisted start instant
func (c *Clock) Disarm(ctx context.Context) {
	c.mu.Lock()
	if !c.armed {
		c.mu.Unlock()
		return
	}
	c.armed = false
	close(c.stop)
	c.stop = nil
	c.lastElapsed = 0
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.ClearStart(ctx, c.sessionID); err != nil {
			logger.Warn("Failed to clear clock start",
				zap.String("session_id", c.sessionID),
				zap.Error(err))
		}
	}
}

// Armed reports whether the clock is tracking
func (c *Clock) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

// Elapsed returns the live time since the start instant. It never decreases
// while armed and is zero when disarmed.
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsedLocked()
}

// Remaining returns the budget left, floored at zero
func (c *Clock) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.armed {
		return 0
	}
	if left := c.budget - c.elapsedLocked(); left > 0 {
		return left
	}
	return 0
}

// Check polls once and fires the budget notification the first time elapsed
// reaches the budget. It reports whether this call fired.
func (c *Clock) Check() bool {
	c.mu.Lock()
	if !c.armed || c.fired || c.elapsedLocked() < c.budget {
		c.mu.Unlock()
		return false
	}
	c.fired = true
	cb := c.onExceeded
	c.mu.Unlock()

	logger.Info("Session budget exceeded", zap.String("session_id", c.sessionID))
	if cb != nil {
		cb()
	}
	return true
}

func (c *Clock) elapsedLocked() time.Duration {
	if !c.armed {
		return 0
	}
	if d := c.now().Sub(c.start); d > c.lastElapsed {
		c.lastElapsed = d
	}
	return c.lastElapsed
}

func (c *Clock) poll(stop <-chan struct{}) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if c.Check() {
				return
			}
		}
	}
}
