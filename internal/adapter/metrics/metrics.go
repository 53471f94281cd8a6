package metrics

import (
	"sync"
	"time"

	"github.com/hive-corporation/spyglass/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// metricsOnce ensures metrics are registered only once
	metricsOnce sync.Once

	// enrichmentRequestsTotal tracks enrichment requests by outcome
	enrichmentRequestsTotal *prometheus.CounterVec

	// enrichmentDuration tracks end-to-end latency of enrichment requests
	enrichmentDuration prometheus.Histogram

	// enrichmentScore tracks the distribution of combined risk scores
	enrichmentScore prometheus.Histogram

	// riskTierTotal tracks how assessments distribute across tiers
	riskTierTotal *prometheus.CounterVec

	// providerRequestsTotal tracks provider call outcomes by provider and status
	providerRequestsTotal *prometheus.CounterVec

	// providerLatency tracks per-provider call latency
	providerLatency *prometheus.HistogramVec

	// providerClientErrorsTotal tracks transport-level provider errors by type
	providerClientErrorsTotal *prometheus.CounterVec
)

// InitMetrics registers all Prometheus metrics for the enrichment pipeline
// This should be called once at application startup
func InitMetrics() {
	metricsOnce.Do(func() {
		enrichmentRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrichment_requests_total",
				Help: "Total number of enrichment requests by outcome",
			},
			[]string{"outcome"},
		)

		enrichmentDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "enrichment_duration_seconds",
				Help:    "Duration of enrichment requests in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
			},
		)

		enrichmentScore = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "enrichment_risk_score",
				Help:    "Distribution of combined risk scores (0-100)",
				Buckets: []float64{0, 10, 25, 40, 50, 60, 70, 85, 100},
			},
		)

		riskTierTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrichment_risk_tier_total",
				Help: "Total number of assessments by risk tier",
			},
			[]string{"tier"},
		)

		providerRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_requests_total",
				Help: "Total number of provider calls by provider and result status",
			},
			[]string{"provider", "status"},
		)

		providerLatency = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provider_latency_seconds",
				Help:    "Latency of provider calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 8.0},
			},
			[]string{"provider"},
		)

		providerClientErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_client_errors_total",
				Help: "Total number of provider transport errors by error type",
			},
			[]string{"provider", "error_type"},
		)
	})
}

// RecordEnrichment records an enrichment request outcome
// outcome: "success", "invalid_ioc", "store_error", "error"
func RecordEnrichment(outcome string) {
	if enrichmentRequestsTotal != nil {
		enrichmentRequestsTotal.WithLabelValues(outcome).Inc()
	}
}

// RecordEnrichmentDuration records the duration of one enrichment request
func RecordEnrichmentDuration(duration time.Duration) {
	if enrichmentDuration != nil {
		enrichmentDuration.Observe(duration.Seconds())
	}
}

// RecordAssessment records score, tier and per-provider outcomes from a
// completed assessment
func RecordAssessment(assessment domain.Assessment) {
	if enrichmentScore != nil {
		enrichmentScore.Observe(float64(assessment.Score))
	}
	if riskTierTotal != nil {
		riskTierTotal.WithLabelValues(assessment.Tier.String()).Inc()
	}

	for _, r := range assessment.Results {
		if providerRequestsTotal != nil {
			providerRequestsTotal.WithLabelValues(string(r.Provider), string(r.Status)).Inc()
		}
		if providerLatency != nil {
			providerLatency.WithLabelValues(string(r.Provider)).Observe(float64(r.LatencyMS) / 1000.0)
		}
	}
}

// RecordProviderError records a provider transport error by type
// errorType: "timeout", "auth", "rate_limit", "server_error", "connection", "parse", "circuit_open"
func RecordProviderError(provider, errorType string) {
	if providerClientErrorsTotal != nil {
		providerClientErrorsTotal.WithLabelValues(provider, errorType).Inc()
	}
}

// EnrichmentTimer is a helper for timing enrichment requests
type EnrichmentTimer struct {
	start time.Time
}

// StartTimer creates a new timer for measuring enrichment duration
func StartTimer() *EnrichmentTimer {
	return &EnrichmentTimer{start: time.Now()}
}

// ObserveDuration records the elapsed time since the timer started
func (t *EnrichmentTimer) ObserveDuration() {
	if t != nil {
		RecordEnrichmentDuration(time.Since(t.start))
	}
}
