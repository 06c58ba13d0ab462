// Package metrics registers the Prometheus collectors served on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ToolInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memorize_tool_invocations_total",
			Help: "Total MCP tool calls by tool name and outcome",
		},
		[]string{"tool", "outcome"},
	)

	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memorize_store_operation_duration_seconds",
			Help:    "Duration of vector store operations by kind",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		},
		[]string{"operation"},
	)

	EmbeddingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "memorize_embedding_duration_seconds",
			Help:    "Duration of local embedding inference calls",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	MergeClustersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memorize_merge_clusters_total",
			Help: "Outcomes of merge_knowledge clustering by result",
		},
		[]string{"result"},
	)

	RecallRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memorize_recall_requests_total",
			Help: "GET /api/recall requests by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		ToolInvocationsTotal,
		StoreOperationDuration,
		EmbeddingDuration,
		MergeClustersTotal,
		RecallRequestsTotal,
	)
}
