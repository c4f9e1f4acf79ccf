// Package prometheus exposes the sieve's operational metrics.  It implements
// the subsetting.Metrics port and serves the scrape endpoint.
package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the sieve publishes, registered on a private
// registry so tests can create instances freely without duplicate
// registration panics.
type Metrics struct {
	registry *prometheus.Registry

	compoundsProcessed *prometheus.CounterVec
	compoundsFailed    prometheus.Counter
	scoringDuration    prometheus.Histogram
	cacheLookups       *prometheus.CounterVec
	libraryEntries     prometheus.Gauge
}

// New builds and registers all collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.compoundsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sieve",
		Name:      "compounds_processed_total",
		Help:      "Compounds fully assessed, partitioned by verdict.",
	}, []string{"verdict"})

	m.compoundsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sieve",
		Name:      "compounds_failed_total",
		Help:      "Compounds skipped due to parse or scoring errors.",
	})

	m.scoringDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sieve",
		Name:      "scoring_duration_seconds",
		Help:      "Wall time to decompose and score one compound.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
	})

	m.cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sieve",
		Name:      "tally_cache_lookups_total",
		Help:      "Deja-vu tally cache lookups, partitioned by outcome.",
	}, []string{"outcome"})

	m.libraryEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sieve",
		Name:      "library_entries",
		Help:      "Unique synthons in the loaded reference library.",
	})

	m.registry.MustRegister(
		m.compoundsProcessed,
		m.compoundsFailed,
		m.scoringDuration,
		m.cacheLookups,
		m.libraryEntries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// CompoundProcessed implements subsetting.Metrics.
func (m *Metrics) CompoundProcessed(acceptable bool) {
	verdict := "rejected"
	if acceptable {
		verdict = "accepted"
	}
	m.compoundsProcessed.WithLabelValues(verdict).Inc()
}

// CompoundFailed implements subsetting.Metrics.
func (m *Metrics) CompoundFailed() {
	m.compoundsFailed.Inc()
}

// ObserveScoringDuration implements subsetting.Metrics.
func (m *Metrics) ObserveScoringDuration(d time.Duration) {
	m.scoringDuration.Observe(d.Seconds())
}

// CacheLookup records a deja-vu cache access.
func (m *Metrics) CacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheLookups.WithLabelValues(outcome).Inc()
}

// SetLibraryEntries publishes the size of the active reference library.
func (m *Metrics) SetLibraryEntries(n int) {
	m.libraryEntries.Set(float64(n))
}

// Handler returns the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for test assertions.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
