package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Embedding provider and cache metrics. Labels: provider and model name the
// backend; status is "success" or "error".
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legalrag",
			Subsystem: "embedding",
			Name:      "requests_total",
			Help:      "Embedding API calls, one per provider request (a batch counts once).",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "legalrag",
			Subsystem: "embedding",
			Name:      "request_duration_seconds",
			Help:      "Embedding API latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legalrag",
			Subsystem: "embedding",
			Name:      "tokens_total",
			Help:      "Tokens billed by the embedding provider, by type (prompt, total).",
		},
		[]string{"provider", "model", "type"},
	)

	EmbeddingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legalrag",
			Subsystem: "embedding",
			Name:      "errors_total",
			Help:      "Failed embedding calls by cause.",
		},
		[]string{"provider", "model", "error_type"},
	)

	// EmbeddingCacheTotal counts Valkey cache lookups; result is "hit" or "miss".
	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legalrag",
			Subsystem: "embedding",
			Name:      "cache_total",
			Help:      "Embedding cache lookups by result.",
		},
		[]string{"result"},
	)
)

var embOnce sync.Once

// RegisterEmbeddingMetrics registers the embedding metrics with the default
// registry. Repeated calls are no-ops.
func RegisterEmbeddingMetrics() {
	embOnce.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal, EmbeddingRequestDuration,
			EmbeddingTokensTotal, EmbeddingErrorsTotal, EmbeddingCacheTotal,
		)
	})
}
