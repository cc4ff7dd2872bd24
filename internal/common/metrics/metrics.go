// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contextmemo_http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "contextmemo_http_request_duration_seconds",
			Help: "Duration of HTTP request handling in seconds",
		},
		[]string{"method", "route"},
	)

	LLMCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contextmemo_llm_calls_total",
			Help: "Total number of LLM completion calls",
		},
		[]string{"operation", "outcome"},
	)

	PrivacyOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contextmemo_privacy_operations_total",
			Help: "Total number of privacy export/delete operations",
		},
		[]string{"operation", "outcome"},
	)

	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contextmemo_emails_sent_total",
			Help: "Total number of outbound emails",
		},
		[]string{"kind", "outcome"},
	)

	PitchCodeVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contextmemo_pitch_code_verifications_total",
			Help: "Total number of pitch-deck access code verifications",
		},
		[]string{"outcome"},
	)
)
