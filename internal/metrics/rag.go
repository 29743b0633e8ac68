package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Chat, retrieval and evaluation Prometheus metrics.
var (
	ChatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legalrag",
			Name:      "chat_requests_total",
			Help:      "Total number of chat completion requests",
		},
		[]string{"provider", "model", "status"},
	)

	ChatRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "legalrag",
			Name:      "chat_request_duration_seconds",
			Help:      "Chat completion request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"provider", "model"},
	)

	ChatTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legalrag",
			Name:      "chat_tokens_total",
			Help:      "Total chat tokens consumed",
		},
		[]string{"provider", "model", "type"}, // prompt / completion
	)

	ProviderRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legalrag",
			Name:      "provider_retries_total",
			Help:      "Provider calls retried after a transient failure",
		},
		[]string{"op"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "legalrag",
			Name:      "search_duration_seconds",
			Help:      "Vector store search duration in seconds, embedding excluded",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
		[]string{"mode"},
	)

	SearchEscalationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "legalrag",
			Name:      "search_escalations_total",
			Help:      "Post-filter fetch escalations",
		},
	)

	SearchShortfallTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "legalrag",
			Name:      "search_shortfall_total",
			Help:      "Filtered searches that returned fewer than top_k results",
		},
	)

	StoreDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "legalrag",
			Name:      "store_documents",
			Help:      "Documents in the vector store",
		},
	)

	RouterDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legalrag",
			Name:      "router_decisions_total",
			Help:      "Router decisions by query type",
		},
		[]string{"query_type", "fallback"},
	)

	EvalCasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legalrag",
			Name:      "eval_cases_total",
			Help:      "Evaluated benchmark cases",
		},
		[]string{"phase", "status"}, // done / cached / failed
	)

	ReviewClausesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legalrag",
			Name:      "review_clauses_total",
			Help:      "Contract clauses reviewed by playbook alignment",
		},
		[]string{"alignment"},
	)

	BreachJurisdictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legalrag",
			Name:      "breach_jurisdictions_total",
			Help:      "Jurisdictions analyzed in breach reports",
		},
		[]string{"status"}, // analyzed / no_statutes
	)
)

var ragOnce sync.Once

// RegisterRAGMetrics registers chat, retrieval and evaluation metrics.
// Repeated calls are no-ops.
func RegisterRAGMetrics() {
	ragOnce.Do(func() {
		prometheus.MustRegister(
			ChatRequestsTotal, ChatRequestDuration, ChatTokensTotal,
			ProviderRetriesTotal,
			SearchDuration, SearchEscalationsTotal, SearchShortfallTotal, StoreDocuments,
			RouterDecisionsTotal, EvalCasesTotal,
			ReviewClausesTotal, BreachJurisdictionsTotal,
		)
	})
}
