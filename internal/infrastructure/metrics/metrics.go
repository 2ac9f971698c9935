package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Chat-API Metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studyhall",
			Subsystem: "chat_api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "studyhall",
			Subsystem: "chat_api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	// Query cache counters
	CacheReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studyhall",
			Subsystem: "chat_api",
			Name:      "cache_reads_total",
			Help:      "Query cache reads by outcome",
		},
		[]string{"kind", "outcome"},
	)

	CacheMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studyhall",
			Subsystem: "chat_api",
			Name:      "cache_mutations_total",
			Help:      "Optimistic cache mutations by outcome",
		},
		[]string{"kind", "outcome"},
	)

	CacheInvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studyhall",
			Subsystem: "chat_api",
			Name:      "cache_invalidations_total",
			Help:      "Query cache invalidations",
		},
		[]string{"kind"},
	)

	CacheSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "studyhall",
			Subsystem: "chat_api",
			Name:      "cache_swept_total",
			Help:      "Expired cache entries removed by the sweeper",
		},
	)

	// Chat streaming
	CompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studyhall",
			Subsystem: "chat_api",
			Name:      "completions_total",
			Help:      "Chat completions by status",
		},
		[]string{"model", "status"},
	)

	CompletionTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studyhall",
			Subsystem: "chat_api",
			Name:      "completion_tokens_total",
			Help:      "Tokens consumed by completions",
		},
		[]string{"model", "kind"},
	)

	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "studyhall",
			Subsystem: "chat_api",
			Name:      "completion_duration_seconds",
			Help:      "Completion round trip duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"model"},
	)

	// Conversations
	ConversationsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "studyhall",
			Subsystem: "chat_api",
			Name:      "conversations_created_total",
			Help:      "Conversations created",
		},
	)

	// Realtime fan-out
	RealtimeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studyhall",
			Subsystem: "chat_api",
			Name:      "realtime_events_total",
			Help:      "Realtime events by type",
		},
		[]string{"event"},
	)

	RealtimeDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "studyhall",
			Subsystem: "chat_api",
			Name:      "realtime_dropped_total",
			Help:      "Realtime events dropped due to full subscriber buffers",
		},
	)

	RealtimeSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "studyhall",
			Subsystem: "chat_api",
			Name:      "realtime_subscribers",
			Help:      "Currently connected realtime subscribers",
		},
	)
)
