// Package telemetry exposes prometheus metrics for the answer pipeline.
// They are served by the ops server at /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsTotal counts processed turns by outcome: answered, clarified,
	// fallback or failed.
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groundchat_turns_total",
		Help: "Processed turns by outcome.",
	}, []string{"outcome"})

	// TurnDuration observes full pipeline latency per turn.
	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "groundchat_turn_duration_seconds",
		Help:    "Latency of one full message-processing turn.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	// ProviderCalls counts LLM calls by kind (plan, generate, summarize,
	// compact, retry) and status.
	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groundchat_provider_calls_total",
		Help: "LLM calls by kind and status.",
	}, []string{"kind", "status"})

	// SearchCalls counts web-search calls by status.
	SearchCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groundchat_search_calls_total",
		Help: "Web search calls by status.",
	}, []string{"status"})

	// PagesFetched counts page fetches by status (ok, empty, rejected,
	// error).
	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groundchat_pages_fetched_total",
		Help: "Page fetches by status.",
	}, []string{"status"})

	// ValidatorFailures counts grounding checks that flagged the generated
	// text, by check name.
	ValidatorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groundchat_validator_failures_total",
		Help: "Validator checks that flagged generated text.",
	}, []string{"check"})

	// ValidatorFallbacks counts checks whose corrective retry also failed
	// and a deterministic fallback was used.
	ValidatorFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groundchat_validator_fallbacks_total",
		Help: "Deterministic fallbacks taken after failed retries.",
	}, []string{"check"})

	// Compactions counts rolling-summarization compaction runs.
	Compactions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "groundchat_window_compactions_total",
		Help: "Recency-window compaction runs.",
	})
)
