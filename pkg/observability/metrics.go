// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the glimpse front-end.
package observability

import "github.com/prometheus/client_golang/prometheus"

// RunnerBuckets covers remote execution latencies from 50ms up to the
// runner's 30s execution limit plus network overhead.
var RunnerBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

// Runner outcome labels.
const (
	OutcomeOK             = "ok"
	OutcomeRemoteError    = "remote_error"
	OutcomeTransportError = "transport_error"
	OutcomeEnvelopeError  = "envelope_error"
	OutcomeStatusError    = "status_error"
)

var (
	// RequestsTotal counts HTTP requests by method, route pattern, and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glimpse_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "glimpse_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// RunnerRequestsTotal counts calls to the remote runner by language and outcome.
	RunnerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glimpse_runner_requests_total",
			Help: "Remote runner requests",
		},
		[]string{"language", "outcome"},
	)

	// RunnerLatency records the round trip to the remote runner in seconds.
	RunnerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "glimpse_runner_latency_seconds",
			Help:    "Remote runner latency",
			Buckets: RunnerBuckets,
		},
		[]string{"language"},
	)

	// StaleResultsTotal counts results discarded because a newer submission
	// was started before they arrived.
	StaleResultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "glimpse_stale_results_total",
			Help: "Discarded stale results",
		},
	)

	// ActiveSessions tracks the number of live playground sessions.
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "glimpse_sessions_active",
			Help: "Active playground sessions",
		},
	)

	// RateLimitRejectedTotal counts requests rejected by the front-end limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glimpse_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"route"},
	)

	// AuthRejectedTotal counts requests refused by the API authenticator.
	AuthRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glimpse_auth_rejected_total",
			Help: "Rejected API authentication attempts",
		},
		[]string{"reason"},
	)

	// ToolCallsTotal counts MCP tool invocations by tool name and outcome.
	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glimpse_mcp_tool_calls_total",
			Help: "MCP tool calls",
		},
		[]string{"tool_name", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		RunnerRequestsTotal,
		RunnerLatency,
		StaleResultsTotal,
		ActiveSessions,
		RateLimitRejectedTotal,
		AuthRejectedTotal,
		ToolCallsTotal,
	)
}
