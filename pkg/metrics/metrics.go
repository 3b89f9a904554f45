package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Broker BrokerMetrics
	API    APIMetrics
	Outbox OutboxMetrics
}

type BrokerMetrics struct {
	PublishLatencySeconds *prometheus.HistogramVec
	PublishTotal          *prometheus.CounterVec
	ConsumeTotal          *prometheus.CounterVec
	ConsumeDuration       *prometheus.HistogramVec
	ReconnectsTotal       *prometheus.CounterVec
	ConnectionState       prometheus.Gauge
	DroppedTotal          *prometheus.CounterVec
}

type APIMetrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

type OutboxMetrics struct {
	DispatchedTotal     *prometheus.CounterVec
	PollDurationSeconds prometheus.Histogram
	PendingBatchSize    prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Broker: BrokerMetrics{
			PublishLatencySeconds: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "payments",
				Subsystem: "broker",
				Name:      "publish_latency_seconds",
				Help:      "Latency per single publish call.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"queue", "result"}), // ok|error

			PublishTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: "payments",
				Subsystem: "broker",
				Name:      "publish_total",
				Help:      "Total publish operations by queue and result.",
			}, []string{"queue", "result"}), // ok|error|unavailable

			ConsumeTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: "payments",
				Subsystem: "broker",
				Name:      "consume_total",
				Help:      "Total consumed messages by queue and result.",
			}, []string{"queue", "result"}), // ack|nack

			ConsumeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "payments",
				Subsystem: "broker",
				Name:      "consume_duration_seconds",
				Help:      "Message handler duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"queue"}),

			ReconnectsTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: "payments",
				Subsystem: "broker",
				Name:      "reconnects_total",
				Help:      "Connection lifecycle events.",
			}, []string{"event"}), // connected|lost|degraded

			ConnectionState: f.NewGauge(prometheus.GaugeOpts{
				Namespace: "payments",
				Subsystem: "broker",
				Name:      "connection_state",
				Help:      "Current connection state (0=disconnected 1=connecting 2=connected 3=degraded).",
			}),

			DroppedTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: "payments",
				Subsystem: "broker",
				Name:      "dropped_total",
				Help:      "Messages acked and discarded without processing, by queue and reason.",
			}, []string{"queue", "reason"}), // malformed
		},

		API: APIMetrics{
			HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: "payments",
				Subsystem: "api",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests by method, path and status.",
			}, []string{"method", "path", "status"}),

			HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "payments",
				Subsystem: "api",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency.",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			}, []string{"method", "path", "status"}),
		},

		Outbox: OutboxMetrics{
			DispatchedTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: "payments",
				Subsystem: "outbox",
				Name:      "dispatched_total",
				Help:      "Outbox messages dispatched by type and result.",
			}, []string{"type", "result"}), // processed|failed|deferred

			PollDurationSeconds: f.NewHistogram(prometheus.HistogramOpts{
				Namespace: "payments",
				Subsystem: "outbox",
				Name:      "poll_duration_seconds",
				Help:      "Duration of one dispatcher poll iteration.",
				Buckets:   prometheus.DefBuckets,
			}),

			PendingBatchSize: f.NewHistogram(prometheus.HistogramOpts{
				Namespace: "payments",
				Subsystem: "outbox",
				Name:      "pending_batch_size",
				Help:      "Number of pending messages fetched per poll.",
				Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
			}),
		},
	}
}
