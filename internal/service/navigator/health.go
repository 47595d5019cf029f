package navigator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"interviewroom-backend/pkg/logger"
	"interviewroom-backend/pkg/metrics"
)

// HealthChecker probes the conversation service
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthMonitor keeps the latest probe result of the conversation service
type HealthMonitor struct {
	checker HealthChecker
	timeout time.Duration
	metrics *metrics.Metrics

	healthy atomic.Bool
	probeMu sync.Mutex
}

// NewHealthMonitor creates a monitor that reports healthy until the first
// failed probe
func NewHealthMonitor(checker HealthChecker, timeout time.Duration, m *metrics.Metrics) *HealthMonitor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	h := &HealthMonitor{
		checker: checker,
		timeout: timeout,
		metrics: m,
	}
	h.healthy.Store(true)
	return h
}

// Healthy returns the latest probe result
func (h *HealthMonitor) Healthy() bool {
	return h.healthy.Load()
}

// Start probes immediately and then every interval until ctx is done
func (h *HealthMonitor) Start(ctx context.Context, interval time.Duration) {
	go func() {
		h.Probe(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.Probe(ctx)
			}
		}
	}()
}

// Probe runs one health check and records the result. Concurrent probes are
// serialized.
func (h *HealthMonitor) Probe(ctx context.Context) bool {
	h.probeMu.Lock()
	defer h.probeMu.Unlock()

	probeCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	err := h.checker.HealthCheck(probeCtx)
	healthy := err == nil

	if prev := h.healthy.Swap(healthy); prev != healthy {
		if healthy {
			logger.Info("Conversation service recovered")
		} else {
			logger.Warn("Conversation service is unavailable", zap.Error(err))
		}
	}
	h.metrics.SetProviderHealthy(healthy)
	return healthy
}
