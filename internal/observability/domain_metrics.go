package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	toolInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlquery_tool_invocations_total",
			Help: "Total number of nl_query invocations by output format and outcome.",
		},
		[]string{"format", "outcome"},
	)
	toolDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nlquery_tool_duration_seconds",
			Help:    "End-to-end nl_query latency by outcome.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"outcome"},
	)
	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nlquery_stage_duration_seconds",
			Help:    "Latency of individual pipeline stages (schema, generate, execute, render).",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage"},
	)
	resultRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nlquery_result_rows",
			Help:    "Number of rows returned per executed statement after the row cap.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		},
	)
	truncatedResultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nlquery_truncated_results_total",
			Help: "Total number of result sets cut off at the row cap.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		toolInvocationsTotal,
		toolDurationSeconds,
		stageDurationSeconds,
		resultRows,
		truncatedResultsTotal,
	)
}

func ObserveInvocation(format, outcome string, elapsed time.Duration) {
	toolInvocationsTotal.WithLabelValues(format, outcome).Inc()
	toolDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func ObserveStage(stage string, elapsed time.Duration) {
	stageDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func ObserveResult(rows int, truncated bool) {
	if rows < 0 {
		rows = 0
	}
	resultRows.Observe(float64(rows))
	if truncated {
		truncatedResultsTotal.Inc()
	}
}
