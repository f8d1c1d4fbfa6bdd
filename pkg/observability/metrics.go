package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors
type Metrics struct {
	QueriesTotal       *prometheus.CounterVec
	RetrievalDuration  prometheus.Histogram
	GenerationDuration prometheus.Histogram
	DegradedBundles    prometheus.Counter
	EvidenceStoreErrs  prometheus.Counter
	CatalogActivations prometheus.Counter
	CacheHits          prometheus.Counter
}

// NewMetrics creates and registers all collectors on the given registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "courselens",
			Name:      "queries_total",
			Help:      "Number of synthesis runs by terminal outcome.",
		}, []string{"outcome"}),
		RetrievalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "courselens",
			Name:      "retrieval_duration_seconds",
			Help:      "Time spent retrieving evidence per query.",
			Buckets:   prometheus.DefBuckets,
		}),
		GenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "courselens",
			Name:      "generation_duration_seconds",
			Help:      "Time spent in the generation capability per call.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		DegradedBundles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "courselens",
			Name:      "degraded_bundles_total",
			Help:      "Bundles assembled from structural facts only after store retries were exhausted.",
		}),
		EvidenceStoreErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "courselens",
			Name:      "evidence_store_errors_total",
			Help:      "Evidence store search failures, including retried ones.",
		}),
		CatalogActivations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "courselens",
			Name:      "catalog_activations_total",
			Help:      "Successful catalog version activations.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "courselens",
			Name:      "answer_cache_hits_total",
			Help:      "Answers served from the cache.",
		}),
	}

	reg.MustRegister(
		m.QueriesTotal,
		m.RetrievalDuration,
		m.GenerationDuration,
		m.DegradedBundles,
		m.EvidenceStoreErrs,
		m.CatalogActivations,
		m.CacheHits,
	)

	return m
}

// NopMetrics returns metrics backed by an isolated registry, for tests
func NopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// ObserveDuration records a duration on a histogram in seconds
func ObserveDuration(h prometheus.Histogram, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
