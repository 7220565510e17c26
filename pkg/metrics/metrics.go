// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// WebhookEventsTotal tracks canonical events produced from inbound payloads.
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Canonical events normalized from inbound webhooks",
		},
		[]string{"type"},
	)

	// WebhookDroppedTotal tracks inbound payloads that produced no event.
	WebhookDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_dropped_total",
			Help: "Inbound webhook payloads that did not normalize to an event",
		},
	)

	// OTPSendsTotal tracks OTP send attempts by outcome.
	OTPSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_sends_total",
			Help: "OTP send attempts",
		},
		[]string{"outcome"},
	)

	// OTPVerifiesTotal tracks OTP verification attempts by outcome.
	OTPVerifiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_verifies_total",
			Help: "OTP verification attempts",
		},
		[]string{"outcome"},
	)

	// LLMRequestDuration tracks completion request duration.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM completion request duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"model", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model"},
	)

	// RetryAttemptsTotal tracks retry executor re-attempts by operation.
	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Re-attempts made by the retry executor",
		},
		[]string{"operation"},
	)

	// AutomationDeliveriesTotal tracks automation webhook deliveries by outcome.
	AutomationDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_deliveries_total",
			Help: "Automation webhook delivery attempts",
		},
		[]string{"outcome"},
	)

	// EventFeedPublishesTotal tracks canonical events published to JetStream.
	EventFeedPublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_feed_publishes_total",
			Help: "Canonical events published to the durable event feed",
		},
		[]string{"type", "outcome"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLLMRequest records metrics for a completion request.
func RecordLLMRequest(model, status string, duration float64, tokens int) {
	LLMRequestDuration.WithLabelValues(model, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(model).Add(float64(tokens))
}
