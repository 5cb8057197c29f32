package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(chatMessagesTotal, ragLatencyMs, ragPromptTokens) }

var chatMessagesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Chat messages appended to session history, labeled by role.",
	},
	[]string{"role"},
)

var ragLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "rag_calls_latency_ms",
		Help:    "Generation collaborator latency distribution in milliseconds.",
		Buckets: []float64{50, 100, 250, 500, 1000, 2000, 4000, 8000, 15000, 30000},
	},
	[]string{"provider", "success"},
)

var ragPromptTokens = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rag_prompt_tokens_total",
		Help: "Estimated prompt tokens sent to the generation collaborator.",
	},
	[]string{"provider"},
)

func IncChatMessage(role string) { chatMessagesTotal.WithLabelValues(norm(role)).Inc() }

func ObserveRAGCall(provider string, latencyMs int, success bool) {
	ragLatencyMs.WithLabelValues(norm(provider), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func AddRAGPromptTokens(provider string, n int) {
	ragPromptTokens.WithLabelValues(norm(provider)).Add(float64(n))
}
