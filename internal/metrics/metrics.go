// Package metrics defines Prometheus metrics for the graph2seq pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	BuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graph2seq_build_duration_seconds",
			Help:    "Graph construction duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	BuildFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph2seq_build_failures_total",
			Help: "Graph construction failures by error category",
		},
		[]string{"reason"},
	)

	ParserRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph2seq_parser_requests_total",
			Help: "Requests to the linguistic-analysis service",
		},
		[]string{"status"},
	)

	DecodeSteps = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graph2seq_decode_steps",
			Help:    "Decoder steps taken per example",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	BatchInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "graph2seq_batch_in_flight",
			Help: "Graph builds currently executing in the worker pool",
		},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph2seq_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graph2seq_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph2seq_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(
		BuildDuration, BuildFailures, ParserRequests,
		DecodeSteps, BatchInFlight,
		RequestsTotal, RequestDuration, ErrorsTotal,
	)
}
