package observability

import (
	"time"

	"github.com/meshfin/financeiro-api/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Outcome labels for per-establishment aggregation results.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds all Prometheus metrics of the API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	fetchAttempts   *prometheus.CounterVec
	establishments  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "financeiro_operation_duration_seconds",
				Help:    "Duration of operations by name.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "financeiro_external_errors_total",
				Help: "Total errors returned by payment providers.",
			},
			[]string{"provider"},
		),
		fetchAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "financeiro_fetch_attempts_total",
				Help: "Total transaction fetch attempts, retries included.",
			},
			[]string{"provider"},
		),
		establishments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "financeiro_establishments_processed_total",
				Help: "Establishments processed by aggregations, by outcome.",
			},
			[]string{"outcome"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "financeiro_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "financeiro_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the provider error counter.
func (m *Metrics) IncrExternalError(provider string) {
	m.externalErrors.WithLabelValues(provider).Inc()
}

// IncrFetchAttempt counts one whole-fetch attempt against a provider.
func (m *Metrics) IncrFetchAttempt(provider string) {
	m.fetchAttempts.WithLabelValues(provider).Inc()
}

// IncrEstablishment counts one processed establishment (OutcomeOK or OutcomeError).
func (m *Metrics) IncrEstablishment(outcome string) {
	m.establishments.WithLabelValues(outcome).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// GetAggregationSnapshot returns cumulative aggregation counters for the
// GET /api/v1/metrics/aggregation endpoint.
func (m *Metrics) GetAggregationSnapshot() *domain.AggregationMetrics {
	ok := getCounterValue(m.establishments, OutcomeOK)
	failed := getCounterValue(m.establishments, OutcomeError)
	attempts := getCounterValue(m.fetchAttempts, "zoop") + getCounterValue(m.fetchAttempts, "use")
	extErrors := getCounterValue(m.externalErrors, "zoop") + getCounterValue(m.externalErrors, "use")
	hits := getCounterValue(m.cacheHits, "token")
	misses := getCounterValue(m.cacheMisses, "token")

	failureRate := float64(0)
	if ok+failed > 0 {
		failureRate = failed / (ok + failed)
	}
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.AggregationMetrics{
		EstablishmentsOK:     int64(ok),
		EstablishmentsFailed: int64(failed),
		FailureRate:          failureRate,
		FetchAttempts:        int64(attempts),
		ExternalErrors:       int64(extErrors),
		TokenCacheHitRate:    hitRate,
		Period:               "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
