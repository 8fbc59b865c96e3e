// Package metrics defines prometheus metric types and provides convenience
// methods to add accounting to various parts of the pipeline.
//
// When defining new operations or metrics, these are helpful values to track:
//  - things coming into or go out of the system: packets, buckets, errors.
//  - the success or error status of any of the above.
//  - the distribution of processing latency.
package metrics

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WorkerTickHistogram tracks the interval between client worker
	// polling cycles.
	WorkerTickHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "poolmetrics_worker_tick_histogram",
			Help:    "client worker polling interval distribution (seconds)",
			Buckets: prometheus.LinearBuckets(0, 0.05, 20),
		},
	)

	// SendErrorCount measures the number of errors sending packets to a
	// collectd destination.
	//
	// Provides metrics:
	//    poolmetrics_send_errors_total
	// Example usage:
	//    metrics.SendErrorCount.With(prometheus.Labels{"target": "127.0.0.1:25826"}).Inc()
	SendErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolmetrics_send_errors_total",
			Help: "Number of errors encountered sending collectd packets.",
		}, []string{"target"})

	// PacketsSentCount counts datagrams successfully sent by a client worker.
	PacketsSentCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolmetrics_packets_sent_total",
			Help: "Number of collectd packets sent.",
		}, []string{"type"})

	// PacketsReceivedCount counts datagrams the server successfully decoded.
	PacketsReceivedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolmetrics_packets_received_total",
			Help: "Number of collectd packets received and decoded.",
		}, []string{"type"})

	// DecodeErrorCount counts datagrams the server could not decode.
	DecodeErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolmetrics_decode_errors_total",
			Help: "Number of packets dropped due to decode errors.",
		}, []string{"reason"})

	// BucketSizeHistogram tracks the number of live entries in a
	// server-side TimeBucket whenever it is flushed.
	// TODO - convert this to integer bins.
	BucketSizeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "poolmetrics_bucket_size_histogram",
			Help: "Number of live entries in a time bucket.",
			Buckets: []float64{
				1, 2, 3, 5, 8, 13, 21, 34, 55, 89, 144, 233, 377, 610,
			},
		}, []string{"bucket"})
)

// init() prints a log message to let the user know that the package has been
// loaded and the metrics registered. The metrics are auto-registered, which
// means they are registered as soon as this package is loaded, and the exact
// time this occurs (and whether this occurs at all in a given context) can be
// opaque.
func init() {
	log.Println("Prometheus metrics in collectd-pool.metrics are registered.")
}
