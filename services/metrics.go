// backend/services/metrics.go
package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tajaa/matcha-recruit-sub002/models"
	"github.com/tajaa/matcha-recruit-sub002/scraper"
)

const metricsNamespace = "tier1"

// Metrics holds the refresh and lookup instruments. A nil *Metrics records nothing.
type Metrics struct {
	fetches         *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	recordsUpserted *prometheus.CounterVec
	upsertFailures  *prometheus.CounterVec
	retries         *prometheus.CounterVec
	lookups         *prometheus.CounterVec
}

// NewMetrics registers the instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "source_fetches_total",
			Help:      "Source refresh attempts by outcome.",
		}, []string{"source", "status"}),
		fetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Wall time of a source refresh, fetch through upsert.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"source"}),
		recordsUpserted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_records_upserted_total",
			Help:      "Cache rows written per source.",
		}, []string{"source"}),
		upsertFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_upsert_failures_total",
			Help:      "Cache rows that failed to write per source.",
		}, []string{"source"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fetch_retries_total",
			Help:      "HTTP retries by reason.",
		}, []string{"reason"}),
		lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "lookups_total",
			Help:      "Tier 1 lookups by result (hit or miss).",
		}, []string{"result"}),
	}
}

// RetryObserver feeds scraper.Fetcher retries into the retries counter.
func (m *Metrics) RetryObserver() scraper.RetryObserver {
	return func(reason string) {
		if m == nil {
			return
		}
		m.retries.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) observeFetch(sourceKey string, status models.FetchStatus, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(sourceKey, string(status)).Inc()
	m.fetchDuration.WithLabelValues(sourceKey).Observe(elapsed.Seconds())
}

func (m *Metrics) observeUpserts(sourceKey string, written, failed int) {
	if m == nil {
		return
	}
	m.recordsUpserted.WithLabelValues(sourceKey).Add(float64(written))
	m.upsertFailures.WithLabelValues(sourceKey).Add(float64(failed))
}

func (m *Metrics) observeLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.lookups.WithLabelValues(result).Inc()
}
