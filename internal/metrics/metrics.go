package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretos_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "secretos_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	SecretsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretos_secrets_submitted_total",
			Help: "Total secrets submitted",
		},
		[]string{"kind"}, // "text" or "audio"
	)

	MatchesDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "secretos_matches_delivered_total",
			Help: "Total matches handed back to callers",
		},
	)

	NoMatchTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "secretos_no_match_total",
			Help: "Total submit/poll calls that found nothing eligible",
		},
	)

	// SelfMatchAverted counts the defensive post-claim re-check firing.
	// It should stay at zero; any increment means the store-level
	// eligibility filter is broken.
	SelfMatchAverted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "secretos_self_match_averted_total",
			Help: "Claims discarded by the post-claim self-match re-check",
		},
	)

	ValidationRejects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "secretos_validation_rejects_total",
			Help: "Total submissions rejected by content validation",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretos_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "secretos_store_latency_seconds",
			Help:    "Secret store operation latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
		[]string{"op"},
	)
)
