package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ==================== Worker Cycle Metrics ====================

	// CyclesTotal tracks run-cycle invocations by trigger reason.
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evorch_cycles_total",
		Help: "Total run-cycle invocations by reason",
	}, []string{"reason"})

	// CycleDuration tracks run-cycle wall-clock duration.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "evorch_cycle_duration_seconds",
		Help:    "Duration of a run-cycle invocation in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	})

	// ReconciliationOutcomesTotal tracks reconciliation engine decisions.
	ReconciliationOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evorch_reconciliation_outcomes_total",
		Help: "Total reconciliation engine outcomes by action taken",
	}, []string{"action"})

	// ==================== Token Metrics ====================

	// TokenRefreshesTotal tracks token broker refreshes by trigger reason.
	TokenRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evorch_token_refreshes_total",
		Help: "Total token refreshes by reason",
	}, []string{"reason", "status"})

	// TokenRemainingMinutes tracks minutes left on the current access token.
	TokenRemainingMinutes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "evorch_token_remaining_minutes",
		Help: "Minutes remaining on the current vehicle access token",
	})

	// ==================== Vehicle Gateway Metrics ====================

	// GatewayCallsTotal tracks vehicle gateway calls by command and outcome.
	GatewayCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evorch_gateway_calls_total",
		Help: "Total vehicle gateway calls by command and outcome",
	}, []string{"command", "status"})

	// GatewayCallDuration tracks vehicle gateway call latency.
	GatewayCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "evorch_gateway_call_duration_seconds",
		Help:    "Vehicle gateway call duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
	}, []string{"command"})

	// ==================== Special Charging Session Metrics ====================

	// SpecialSessionsActive tracks in-flight special-charging sessions by state.
	SpecialSessionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "evorch_special_sessions_active",
		Help: "Special-charging sessions currently in each state",
	}, []string{"state"})

	// SpecialSessionsTotal tracks special-charging sessions reaching a terminal state.
	SpecialSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evorch_special_sessions_total",
		Help: "Total special-charging sessions by terminal state",
	}, []string{"state"})

	// ==================== Infrastructure Metrics ====================

	// HTTPRequestDuration tracks HTTP request duration.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "evorch_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path", "status"})

	// HTTPRequestsTotal tracks total HTTP requests.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evorch_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// DatabaseLatency tracks database query latency.
	DatabaseLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "evorch_database_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
	}, []string{"operation", "collection"})

	// CacheHitsTotal tracks cache hits and misses.
	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evorch_cache_hits_total",
		Help: "Total cache hits and misses",
	}, []string{"result"}) // hit, miss

	// EventsPublishedTotal tracks session events published to NATS.
	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evorch_events_published_total",
		Help: "Total session events published",
	}, []string{"state", "status"}) // status: published, failed

	// CircuitBreakerStateChanges tracks circuit breaker transitions by target service.
	CircuitBreakerStateChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evorch_circuit_breaker_state_changes_total",
		Help: "Total circuit breaker state transitions",
	}, []string{"breaker", "state"})
)

// RecordCycle records a completed run-cycle invocation.
func RecordCycle(reason string, durationSeconds float64) {
	CyclesTotal.WithLabelValues(reason).Inc()
	CycleDuration.Observe(durationSeconds)
}

// RecordReconciliationOutcome records the action the reconciliation engine took.
func RecordReconciliationOutcome(action string) {
	ReconciliationOutcomesTotal.WithLabelValues(action).Inc()
}

// RecordTokenRefresh records a token broker refresh attempt.
func RecordTokenRefresh(reason string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	TokenRefreshesTotal.WithLabelValues(reason, status).Inc()
}

// RecordGatewayCall records a vehicle gateway call outcome and latency.
func RecordGatewayCall(command string, success bool, durationSeconds float64) {
	status := "success"
	if !success {
		status = "failure"
	}
	GatewayCallsTotal.WithLabelValues(command, status).Inc()
	GatewayCallDuration.WithLabelValues(command).Observe(durationSeconds)
}

// RecordSpecialSessionTerminal records a special-charging session reaching a terminal state.
func RecordSpecialSessionTerminal(state string) {
	SpecialSessionsTotal.WithLabelValues(state).Inc()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, durationSeconds float64) {
	statusStr := fmt.Sprintf("%d", status)
	HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(durationSeconds)
}

// RecordCacheAccess records a cache access metric.
func RecordCacheAccess(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheHitsTotal.WithLabelValues(result).Inc()
}

// RecordEventPublished records a session event publish attempt.
func RecordEventPublished(state string, success bool) {
	status := "published"
	if !success {
		status = "failed"
	}
	EventsPublishedTotal.WithLabelValues(state, status).Inc()
}
