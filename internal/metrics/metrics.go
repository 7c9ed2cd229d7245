// Package metrics provides Prometheus metrics for quill. It tracks message
// lifecycle counts per queue and policy plus storage latencies.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quill"

// Message lifecycle metrics, labeled by queue and policy.
var (
	// MessagesSentTotal counts messages accepted by SendMessage.
	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Total number of messages accepted for delivery",
		},
		[]string{"queue", "policy"},
	)

	// MessagesReceivedTotal counts successful leases.
	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of message leases handed to receivers",
		},
		[]string{"queue", "policy"},
	)

	// MessagesAcknowledgedTotal counts permanent removals via acknowledge.
	MessagesAcknowledgedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_acknowledged_total",
			Help:      "Total number of messages removed by acknowledgement",
		},
		[]string{"queue", "policy"},
	)

	// MessagesDeduplicatedTotal counts sends suppressed by FIFO deduplication.
	MessagesDeduplicatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_deduplicated_total",
			Help:      "Total number of sends suppressed as duplicates",
		},
		[]string{"queue"},
	)

	// LeasesExpiredTotal counts leases reclaimed to the ready set.
	LeasesExpiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leases_expired_total",
			Help:      "Total number of expired leases returned to ready",
		},
		[]string{"queue", "policy"},
	)

	// MessagesDeadLetteredTotal counts messages parked after exceeding the
	// receive-count threshold.
	MessagesDeadLetteredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dead_lettered_total",
			Help:      "Total number of messages moved to the dead-letter set",
		},
		[]string{"queue", "policy"},
	)

	// ReadyDepth tracks visible messages waiting for a receiver.
	ReadyDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ready_depth",
			Help:      "Current number of messages awaiting delivery (including delayed)",
		},
		[]string{"queue", "policy"},
	)

	// InFlightDepth tracks currently leased messages.
	InFlightDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "in_flight_depth",
			Help:      "Current number of leased messages",
		},
		[]string{"queue", "policy"},
	)
)

// Storage metrics.
var (
	// StorageWriteLatency measures envelope write latencies.
	StorageWriteLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_write_latency_seconds",
			Help:      "Latency of message envelope writes in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
		},
	)

	// StorageReadLatency measures load-on-start scan latencies.
	StorageReadLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_read_latency_seconds",
			Help:      "Latency of message envelope reads in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// StorageWriteBytes counts bytes written to the store.
	StorageWriteBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_write_bytes_total",
			Help:      "Total envelope bytes written to storage",
		},
	)
)

// StoreHook adapts the Prometheus collectors to the pebble store's
// MetricsHook interface.
type StoreHook struct{}

func (StoreHook) ObserveWrite(elapsed time.Duration, bytes int) {
	StorageWriteLatency.Observe(elapsed.Seconds())
	StorageWriteBytes.Add(float64(bytes))
}

func (StoreHook) ObserveRead(elapsed time.Duration, _ int) {
	StorageReadLatency.Observe(elapsed.Seconds())
}
