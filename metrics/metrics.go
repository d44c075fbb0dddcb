// Package metrics exposes Prometheus instrumentation for the chat
// pipeline and the upstream RAG client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChatTurns counts completed chat turns by reply branch.
	ChatTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "criabot",
		Subsystem: "chat",
		Name:      "turns_total",
		Help:      "Completed chat turns by reply branch.",
	}, []string{"branch"})

	// LLMRequestDuration observes chat agent round-trip latency.
	LLMRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "criabot",
		Subsystem: "chat",
		Name:      "llm_request_duration_seconds",
		Help:      "Chat agent request latency.",
		Buckets:   prometheus.DefBuckets,
	})

	// SearchUnits counts search units consumed across retrieval and
	// re-ranking.
	SearchUnits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "criabot",
		Subsystem: "chat",
		Name:      "search_units_total",
		Help:      "Search units consumed by retrieval and re-ranking.",
	})

	// TokensConsumed counts LLM tokens by direction.
	TokensConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "criabot",
		Subsystem: "chat",
		Name:      "tokens_total",
		Help:      "LLM tokens consumed by direction.",
	}, []string{"direction"})
)

// Branch labels for ChatTurns.
const (
	BranchText             = "text"
	BranchQuestion         = "question"
	BranchNoContextGuess   = "no_context_guess"
	BranchNoContextMessage = "no_context_message"
	BranchNoContextLLM     = "no_context_llm"
)

// ObserveUsage records token counts for one completed turn.
func ObserveUsage(promptTokens, completionTokens int) {
	TokensConsumed.WithLabelValues("prompt").Add(float64(promptTokens))
	TokensConsumed.WithLabelValues("completion").Add(float64(completionTokens))
}
