package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// Every method is safe on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP Request Metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Redis Metrics
	redisDegradedMode prometheus.Gauge
	redisHealthChecks *prometheus.CounterVec

	// WebSocket Metrics
	websocketConnections   prometheus.Gauge
	websocketMessagesTotal *prometheus.CounterVec

	// Session Metrics
	sessionsActive        prometheus.Gauge
	sessionTransitions    *prometheus.CounterVec
	sessionErrorsTotal    *prometheus.CounterVec
	sessionsEndedTotal    *prometheus.CounterVec
	sessionLiveDuration   *prometheus.HistogramVec
	staleResultsDiscarded *prometheus.CounterVec

	// Conversation Service Metrics
	providerRequestsTotal   *prometheus.CounterVec
	providerRequestDuration *prometheus.HistogramVec
	providerHealthy         prometheus.Gauge
	circuitBreakerState     *prometheus.GaugeVec

	// Transcript / Evaluation Metrics
	transcriptMessagesTotal *prometheus.CounterVec
	evaluationOverallScore  prometheus.Histogram

	// Export Metrics
	exportsTotal *prometheus.CounterVec
}

// NewMetrics creates all Prometheus metrics on a dedicated registry
func NewMetrics(serviceName string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)
	labels := prometheus.Labels{"service": serviceName}

	return &Metrics{
		registry: registry,

		// HTTP Request Metrics
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: labels,
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "HTTP request latency in seconds",
				ConstLabels: labels,
				Buckets:     prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "http_requests_in_flight",
				Help:        "Number of HTTP requests currently being processed",
				ConstLabels: labels,
			},
		),

		// Redis Metrics
		redisDegradedMode: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "redis_degraded_mode",
				Help:        "Indicates if Redis is in degraded mode (1 = degraded, 0 = healthy)",
				ConstLabels: labels,
			},
		),
		redisHealthChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "redis_health_check_total",
				Help:        "Total number of Redis health checks",
				ConstLabels: labels,
			},
			[]string{"status"},
		),

		// WebSocket Metrics
		websocketConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "websocket_connections",
				Help:        "Number of active session stream connections",
				ConstLabels: labels,
			},
		),
		websocketMessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "websocket_messages_total",
				Help:        "Total number of WebSocket messages",
				ConstLabels: labels,
			},
			[]string{"type", "direction"},
		),

		// Session Metrics
		sessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "interview_sessions_active",
				Help:        "Number of registered interview sessions",
				ConstLabels: labels,
			},
		),
		sessionTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "interview_session_transitions_total",
				Help:        "Total number of session phase transitions",
				ConstLabels: labels,
			},
			[]string{"from", "to"},
		),
		sessionErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "interview_session_errors_total",
				Help:        "Total number of sessions entering the error phase",
				ConstLabels: labels,
			},
			[]string{"kind"},
		),
		sessionsEndedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "interview_sessions_ended_total",
				Help:        "Total number of completed teardowns",
				ConstLabels: labels,
			},
			[]string{"reason"},
		),
		sessionLiveDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "interview_session_live_duration_seconds",
				Help:        "Time spent in the live phase",
				ConstLabels: labels,
				Buckets:     []float64{30, 60, 120, 300, 600, 900, 1200, 1800, 2700, 3600},
			},
			[]string{"reason"},
		),
		staleResultsDiscarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "interview_stale_results_discarded_total",
				Help:        "Async results that arrived after their attempt was superseded",
				ConstLabels: labels,
			},
			[]string{"operation"},
		),

		// Conversation Service Metrics
		providerRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "conversation_provider_requests_total",
				Help:        "Total number of conversation service requests",
				ConstLabels: labels,
			},
			[]string{"operation", "status"},
		),
		providerRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "conversation_provider_request_duration_seconds",
				Help:        "Conversation service request latency in seconds",
				ConstLabels: labels,
				Buckets:     prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		providerHealthy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "conversation_provider_healthy",
				Help:        "Conversation service health (1 = healthy, 0 = outage)",
				ConstLabels: labels,
			},
		),
		circuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:        "circuit_breaker_state",
				Help:        "State of circuit breakers (0=closed, 1=half_open, 2=open)",
				ConstLabels: labels,
			},
			[]string{"name"},
		),

		// Transcript / Evaluation Metrics
		transcriptMessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "interview_transcript_messages_total",
				Help:        "Total number of transcript messages collected",
				ConstLabels: labels,
			},
			[]string{"speaker", "origin"},
		),
		evaluationOverallScore: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "interview_evaluation_overall_score",
				Help:        "Distribution of aggregate evaluation scores",
				ConstLabels: labels,
				Buckets:     prometheus.LinearBuckets(0, 10, 11),
			},
		),

		// Export Metrics
		exportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "interview_exports_total",
				Help:        "Total number of session exports",
				ConstLabels: labels,
			},
			[]string{"status"},
		),
	}
}

// GetRegistry returns the registry all metrics are registered on
func (m *Metrics) GetRegistry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// HTTP Metrics Methods

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments the number of in-flight HTTP requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.httpRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements the number of in-flight HTTP requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.httpRequestsInFlight.Dec()
}

// Redis Metrics Methods

// SetRedisDegraded records the Redis degraded mode flag
func (m *Metrics) SetRedisDegraded(degraded bool) {
	if m == nil {
		return
	}
	m.redisDegradedMode.Set(boolToFloat(degraded))
}

// RecordRedisHealthCheck records one Redis health probe
func (m *Metrics) RecordRedisHealthCheck(err error) {
	if m == nil {
		return
	}
	m.redisHealthChecks.WithLabelValues(statusLabel(err)).Inc()
}

// WebSocket Metrics Methods

// IncWebSocketConnections increments the number of active WebSocket connections
func (m *Metrics) IncWebSocketConnections() {
	if m == nil {
		return
	}
	m.websocketConnections.Inc()
}

// DecWebSocketConnections decrements the number of active WebSocket connections
func (m *Metrics) DecWebSocketConnections() {
	if m == nil {
		return
	}
	m.websocketConnections.Dec()
}

// RecordWebSocketMessage records a WebSocket message
func (m *Metrics) RecordWebSocketMessage(msgType, direction string) {
	if m == nil {
		return
	}
	m.websocketMessagesTotal.WithLabelValues(msgType, direction).Inc()
}

// Session Metrics Methods

// SetActiveSessions sets the number of registered sessions
func (m *Metrics) SetActiveSessions(count int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(count))
}

// RecordSessionTransition records a phase change
func (m *Metrics) RecordSessionTransition(from, to string) {
	if m == nil {
		return
	}
	m.sessionTransitions.WithLabelValues(from, to).Inc()
}

// RecordSessionError records a session entering the error phase
func (m *Metrics) RecordSessionError(kind string) {
	if m == nil {
		return
	}
	m.sessionErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordSessionEnded records a finished teardown and the live time it closed
func (m *Metrics) RecordSessionEnded(reason string, live time.Duration) {
	if m == nil {
		return
	}
	m.sessionsEndedTotal.WithLabelValues(reason).Inc()
	m.sessionLiveDuration.WithLabelValues(reason).Observe(live.Seconds())
}

// RecordStaleResult records an async result dropped for a superseded attempt
func (m *Metrics) RecordStaleResult(operation string) {
	if m == nil {
		return
	}
	m.staleResultsDiscarded.WithLabelValues(operation).Inc()
}

// Conversation Service Metrics Methods

// RecordProviderRequest records one conversation service call
func (m *Metrics) RecordProviderRequest(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.providerRequestsTotal.WithLabelValues(operation, statusLabel(err)).Inc()
	m.providerRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetProviderHealthy records the latest conversation service probe
func (m *Metrics) SetProviderHealthy(healthy bool) {
	if m == nil {
		return
	}
	m.providerHealthy.Set(boolToFloat(healthy))
}

// SetCircuitBreakerState records a breaker state (0=closed, 1=half_open, 2=open)
func (m *Metrics) SetCircuitBreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.circuitBreakerState.WithLabelValues(name).Set(state)
}

// Transcript / Evaluation Metrics Methods

// RecordTranscriptMessage records one appended transcript line
func (m *Metrics) RecordTranscriptMessage(speaker, origin string) {
	if m == nil {
		return
	}
	m.transcriptMessagesTotal.WithLabelValues(speaker, origin).Inc()
}

// RecordEvaluation records an aggregate score
func (m *Metrics) RecordEvaluation(overall float64) {
	if m == nil {
		return
	}
	m.evaluationOverallScore.Observe(overall)
}

// Export Metrics Methods

// RecordExport records an export attempt
func (m *Metrics) RecordExport(err error) {
	if m == nil {
		return
	}
	m.exportsTotal.WithLabelValues(statusLabel(err)).Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
