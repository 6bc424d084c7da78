package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search, chat, and embedding Prometheus metrics. Registered explicitly from
// main (no init) so tests can import this package without polluting the
// default registry twice.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datamart",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "datamart",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datamart",
			Name:      "embedding_tokens_total",
			Help:      "Total embedding tokens consumed",
		},
		[]string{"provider", "model", "type"},
	)

	EmbeddingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datamart",
			Name:      "embedding_errors_total",
			Help:      "Total embedding errors",
		},
		[]string{"provider", "model", "error_type"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datamart",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	SemanticSearchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datamart",
			Name:      "semantic_search_total",
			Help:      "Semantic search requests by outcome",
		},
		[]string{"status"}, // "ok" / "error"
	)

	FuzzyFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datamart",
			Name:      "fuzzy_fallback_total",
			Help:      "Fuzzy suggestion fallbacks by outcome",
		},
		[]string{"outcome"}, // "hit" / "empty"
	)

	ChatTurnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "datamart",
			Name:      "chat_turn_duration_seconds",
			Help:      "End-to-end chat turn duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	ChatToolInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datamart",
			Name:      "chat_tool_invocations_total",
			Help:      "Tool invocations issued by the chat orchestrator",
		},
		[]string{"tool", "status"}, // status: "ok" / "error" / "rejected" / "redirected"
	)
)

var registered bool

// Register registers all service metrics. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(
		EmbeddingRequestsTotal,
		EmbeddingRequestDuration,
		EmbeddingTokensTotal,
		EmbeddingErrorsTotal,
		EmbeddingCacheTotal,
		SemanticSearchTotal,
		FuzzyFallbackTotal,
		ChatTurnDuration,
		ChatToolInvocationsTotal,
	)
	registered = true
}
