package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contactly_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// RateLimitDecisions counts rate limiter outcomes (allow|deny).
	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contactly_rate_limit_decisions_total",
			Help: "Total number of rate limiter decisions",
		},
		[]string{"result"},
	)

	// EmailVerifications counts verification transitions (verified|already_verified|failure).
	EmailVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contactly_email_verifications_total",
			Help: "Total number of email verification attempts",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contactly_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
