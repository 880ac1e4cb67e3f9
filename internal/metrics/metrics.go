package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	toolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bluewise",
		Subsystem: "tools",
		Name:      "calls_total",
		Help:      "Tool dispatches broken down by tool and outcome.",
	}, []string{"tool", "outcome"})

	toolLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bluewise",
		Subsystem: "tools",
		Name:      "latency_seconds",
		Help:      "Latency distribution for tool runs.",
		Buckets: []float64{
			0.005, 0.01, 0.05, 0.1,
			0.25, 0.5, 1, 2,
			5, 10, 20,
		},
	}, []string{"tool"})

	modelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bluewise",
		Subsystem: "llm",
		Name:      "calls_total",
		Help:      "Language model calls broken down by kind and outcome.",
	}, []string{"kind", "outcome"})

	modelLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bluewise",
		Subsystem: "llm",
		Name:      "latency_seconds",
		Help:      "Latency distribution for language model calls.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"kind"})

	jsonRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bluewise",
		Subsystem: "llm",
		Name:      "json_recoveries_total",
		Help:      "Model JSON outputs that needed repair or fell back to a default payload.",
	}, []string{"outcome"})

	orchestrationTurns = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bluewise",
		Subsystem: "orchestrator",
		Name:      "turns",
		Help:      "Model turns used per ask.",
		Buckets:   []float64{1, 2, 3, 4, 6, 8},
	})

	orchestrationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bluewise",
		Subsystem: "orchestrator",
		Name:      "asks_total",
		Help:      "Asks broken down by final intent.",
	}, []string{"intent"})

	sends = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bluewise",
		Subsystem: "send",
		Name:      "messages_total",
		Help:      "Outbound messages broken down by channel and status.",
	}, []string{"channel", "status"})
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordToolCall records one tool dispatch
func RecordToolCall(tool string, err error, latency time.Duration) {
	toolCalls.With(prometheus.Labels{"tool": tool, "outcome": outcome(err)}).Inc()
	toolLatency.WithLabelValues(tool).Observe(latency.Seconds())
}

// RecordModelCall records one language model call. kind is "chat" or "complete".
func RecordModelCall(kind string, err error, latency time.Duration) {
	modelCalls.With(prometheus.Labels{"kind": kind, "outcome": outcome(err)}).Inc()
	modelLatency.WithLabelValues(kind).Observe(latency.Seconds())
}

// RecordJSONRecovery counts a repaired or defaulted model payload
func RecordJSONRecovery(result string) {
	jsonRecoveries.WithLabelValues(result).Inc()
}

// RecordAsk records the turns used and the final intent of one ask
func RecordAsk(intent string, turns int) {
	orchestrationTurns.Observe(float64(turns))
	orchestrationOutcomes.WithLabelValues(intent).Inc()
}

// RecordSend counts an outbound message by channel and sent/failed status
func RecordSend(channel, status string) {
	sends.With(prometheus.Labels{"channel": channel, "status": status}).Inc()
}

// Handler exposes the default registry for scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
