// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Monitor metrics
	UpdatesReceived  *prometheus.CounterVec
	UpdatesDropped   prometheus.Counter
	UpdatesFiltered  prometheus.Counter
	QueueDepth       prometheus.Gauge
	StreamState      prometheus.Gauge
	StreamReconnects prometheus.Counter
	HighestSlotSeen  prometheus.Gauge

	// Normalizer metrics
	EventsEmitted   *prometheus.CounterVec
	DecodeErrors    *prometheus.CounterVec
	DuplicatesTotal *prometheus.CounterVec

	// Execution metrics
	OrdersTotal       *prometheus.CounterVec
	SubmitAttempts    *prometheus.CounterVec
	CommittedExposure prometheus.Gauge
	ExecutionLatency  prometheus.Histogram

	// Ledger metrics
	RecordsAppended *prometheus.CounterVec
	LedgerErrors    prometheus.Counter
	PublishErrors   *prometheus.CounterVec
	LedgerFaulted   prometheus.Gauge

	// Latency metrics
	EndToEndLatency prometheus.Histogram
	RPCCallLatency  *prometheus.HistogramVec
	RPCCallErrors   *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "copytrader"
	}

	return &Metrics{
		// Monitor metrics
		UpdatesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "updates_received_total",
			Help:      "Total number of raw updates received by source",
		}, []string{"source"}),
		UpdatesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "updates_dropped_total",
			Help:      "Total number of raw updates dropped because the queue was full",
		}),
		UpdatesFiltered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "updates_filtered_total",
			Help:      "Total number of updates discarded by the client-side wallet filter",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "queue_depth",
			Help:      "Current number of raw updates waiting for the normalizer",
		}),
		StreamState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "stream_state",
			Help:      "Stream connection state (0=disconnected, 1=connected, 2=reconnecting)",
		}),
		StreamReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "stream_reconnect_attempts_total",
			Help:      "Total number of stream reconnect attempts",
		}),
		HighestSlotSeen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "highest_slot_seen",
			Help:      "Highest Solana slot number seen",
		}),

		// Normalizer metrics
		EventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalizer",
			Name:      "trade_events_total",
			Help:      "Total number of trade events emitted by protocol and direction",
		}, []string{"protocol", "direction"}),
		DecodeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalizer",
			Name:      "decode_errors_total",
			Help:      "Total number of skipped instructions by protocol and reason",
		}, []string{"protocol", "reason"}),
		DuplicatesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalizer",
			Name:      "duplicates_total",
			Help:      "Total number of redelivered transactions rejected by dedup tier",
		}, []string{"tier"}),

		// Execution metrics
		OrdersTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "orders_total",
			Help:      "Total number of processed trade events by final status",
		}, []string{"status"}),
		SubmitAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "submit_attempts_total",
			Help:      "Total number of submission attempts by outcome",
		}, []string{"outcome"}),
		CommittedExposure: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "committed_exposure_sol",
			Help:      "Copy wallet exposure committed by executed trades, in SOL",
		}),
		ExecutionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "execution_latency_seconds",
			Help:      "Time from order creation to terminal state in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		// Ledger metrics
		RecordsAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "records_appended_total",
			Help:      "Total number of trade records durably appended by status",
		}, []string{"status"}),
		LedgerErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "write_errors_total",
			Help:      "Total number of failed durable appends",
		}),
		PublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "publish_errors_total",
			Help:      "Total number of best-effort record publications that failed by sink",
		}, []string{"sink"}),
		LedgerFaulted: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "faulted",
			Help:      "1 when the ledger has entered the fault state",
		}),

		// Latency metrics
		EndToEndLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "end_to_end_latency_seconds",
			Help:      "Time from update receipt to ledger append in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed Solana RPC calls",
		}, []string{"method"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordUpdateReceived increments the raw updates counter for a source.
func RecordUpdateReceived(source string, slot int64) {
	DefaultMetrics.UpdatesReceived.WithLabelValues(source).Inc()
	DefaultMetrics.HighestSlotSeen.Set(float64(slot))
}

// RecordUpdateDropped increments the dropped updates counter.
func RecordUpdateDropped() {
	DefaultMetrics.UpdatesDropped.Inc()
}

// RecordUpdateFiltered increments the client-side filter counter.
func RecordUpdateFiltered() {
	DefaultMetrics.UpdatesFiltered.Inc()
}

// UpdateQueueDepth sets the queue depth gauge.
func UpdateQueueDepth(n int) {
	DefaultMetrics.QueueDepth.Set(float64(n))
}

// RecordStreamState records a stream connection state change.
func RecordStreamState(state int, reconnecting bool) {
	DefaultMetrics.StreamState.Set(float64(state))
	if reconnecting {
		DefaultMetrics.StreamReconnects.Inc()
	}
}

// RecordTradeEvent increments the trade events counter.
func RecordTradeEvent(protocol, direction string) {
	DefaultMetrics.EventsEmitted.WithLabelValues(protocol, direction).Inc()
}

// RecordDecodeError records a skipped instruction.
func RecordDecodeError(protocol, reason string) {
	DefaultMetrics.DecodeErrors.WithLabelValues(protocol, reason).Inc()
}

// RecordDuplicate records a redelivery rejected by a dedup tier.
func RecordDuplicate(tier string) {
	DefaultMetrics.DuplicatesTotal.WithLabelValues(tier).Inc()
}

// RecordOrder records a trade event reaching its final status.
func RecordOrder(status string, seconds float64) {
	DefaultMetrics.OrdersTotal.WithLabelValues(status).Inc()
	if seconds > 0 {
		DefaultMetrics.ExecutionLatency.Observe(seconds)
	}
}

// RecordSubmitAttempt records one submission attempt.
func RecordSubmitAttempt(outcome string) {
	DefaultMetrics.SubmitAttempts.WithLabelValues(outcome).Inc()
}

// UpdateExposure sets the committed exposure gauge.
func UpdateExposure(sol float64) {
	DefaultMetrics.CommittedExposure.Set(sol)
}

// RecordLedgerAppend records a durable append.
func RecordLedgerAppend(status string, endToEndSeconds float64) {
	DefaultMetrics.RecordsAppended.WithLabelValues(status).Inc()
	if endToEndSeconds > 0 {
		DefaultMetrics.EndToEndLatency.Observe(endToEndSeconds)
	}
}

// RecordLedgerFault records a failed append and flips the fault gauge.
func RecordLedgerFault() {
	DefaultMetrics.LedgerErrors.Inc()
	DefaultMetrics.LedgerFaulted.Set(1)
}

// RecordPublishError records a failed best-effort publication.
func RecordPublishError(sink string) {
	DefaultMetrics.PublishErrors.WithLabelValues(sink).Inc()
}

// RecordRPCCall records RPC call latency and failures.
func RecordRPCCall(method string, seconds float64, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
