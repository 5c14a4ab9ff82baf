package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "udpmon_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "udpmon_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Ingestion metrics
	DatagramsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "udpmon_datagrams_received_total",
			Help: "Total UDP datagrams received",
		},
	)

	DatagramBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "udpmon_datagram_bytes_total",
			Help: "Total UDP payload bytes received",
		},
	)

	EchoFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "udpmon_echo_failures_total",
			Help: "Total failed echo replies",
		},
	)

	// Store metrics
	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "udpmon_storage_errors_total",
			Help: "Total storage operation failures",
		},
		[]string{"op"}, // "insert", "query", "delete"
	)

	MessagesPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "udpmon_messages_purged_total",
			Help: "Total messages removed by retention",
		},
	)

	InsertLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "udpmon_insert_latency_seconds",
			Help:    "Message insert latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)
)
