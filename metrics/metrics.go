// Package metrics holds the Prometheus collectors of the QA service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector. A nil *Metrics is valid and records
// nothing, so components can be built without instrumentation.
//
// Metrics:
//   - ragqa_asks_total{intent}
//   - ragqa_short_circuits_total{reason}
//   - ragqa_embedding_cache_hits_total / ragqa_embedding_cache_misses_total
//   - ragqa_ingested_chunks_total{collection}
//   - ragqa_retrieval_duration_seconds / ragqa_generation_duration_seconds
type Metrics struct {
	AsksTotal          *prometheus.CounterVec
	ShortCircuitsTotal *prometheus.CounterVec

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	IngestedChunksTotal *prometheus.CounterVec

	RetrievalDuration  prometheus.Histogram
	GenerationDuration prometheus.Histogram
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AsksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragqa_asks_total",
				Help: "Questions received, by classified intent",
			},
			[]string{"intent"},
		),
		ShortCircuitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragqa_short_circuits_total",
				Help: "Questions answered without generation, by reason",
			},
			[]string{"reason"}, // greeting, help, smalltalk, empty, ambiguous_name, no_evidence
		),
		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "ragqa_embedding_cache_hits_total",
			Help: "Embedding cache hits",
		}),
		CacheMissesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "ragqa_embedding_cache_misses_total",
			Help: "Embedding cache misses",
		}),
		IngestedChunksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragqa_ingested_chunks_total",
				Help: "Chunks written to the vector store, by collection",
			},
			[]string{"collection"},
		),
		RetrievalDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ragqa_retrieval_duration_seconds",
			Help:    "Time spent embedding and searching for one question",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		}),
		GenerationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ragqa_generation_duration_seconds",
			Help:    "Time spent streaming one answer from the model",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
	}
}

func (m *Metrics) Ask(intent string) {
	if m != nil {
		m.AsksTotal.WithLabelValues(intent).Inc()
	}
}

func (m *Metrics) ShortCircuit(reason string) {
	if m != nil {
		m.ShortCircuitsTotal.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) EmbeddingCacheHit() {
	if m != nil {
		m.CacheHitsTotal.Inc()
	}
}

func (m *Metrics) EmbeddingCacheMiss() {
	if m != nil {
		m.CacheMissesTotal.Inc()
	}
}

func (m *Metrics) ChunksIngested(collection string, n int) {
	if m != nil && n > 0 {
		m.IngestedChunksTotal.WithLabelValues(collection).Add(float64(n))
	}
}

func (m *Metrics) ObserveRetrieval(d time.Duration) {
	if m != nil {
		m.RetrievalDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveGeneration(d time.Duration) {
	if m != nil {
		m.GenerationDuration.Observe(d.Seconds())
	}
}
