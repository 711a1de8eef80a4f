// Package prommetrics exports client telemetry as Prometheus metrics.
//
//	reg := prometheus.NewRegistry()
//	client := dify.New(key, dify.WithTelemetry(prommetrics.New(reg)))
package prommetrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/petal-labs/dify/core"
)

// Collector implements core.TelemetryHook on Prometheus counters, a histogram
// and gauges. It is safe for concurrent use.
type Collector struct {
	requestsTotal    *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	circuitBreakerState *prometheus.GaugeVec

	streamsTotal       *prometheus.CounterVec
	streamChunksTotal  *prometheus.CounterVec
	streamDroppedTotal *prometheus.CounterVec
}

// New creates a collector registered on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Collector{
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dify_requests_total",
				Help: "Total number of calls by method and final status code (0 when no response).",
			},
			[]string{"method", "status"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dify_errors_total",
				Help: "Total number of failed calls by method and error kind.",
			},
			[]string{"method", "kind"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dify_request_duration_seconds",
				Help:    "Duration of calls in seconds, including retries and stream consumption.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		requestsInFlight: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dify_requests_in_flight",
				Help: "Number of calls currently in flight.",
			},
			[]string{"method"},
		),
		retriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dify_retries_total",
				Help: "Total number of retries by method.",
			},
			[]string{"method"},
		),
		circuitBreakerState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dify_circuit_breaker_state",
				Help: "Current state of each circuit breaker (0=closed, 1=open, 2=half-open).",
			},
			[]string{"group"},
		),
		streamsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dify_streams_total",
				Help: "Total number of streaming responses started.",
			},
			[]string{"operation"},
		),
		streamChunksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dify_stream_chunks_total",
				Help: "Total number of stream events yielded.",
			},
			[]string{"operation"},
		),
		streamDroppedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dify_stream_lines_dropped_total",
				Help: "Total number of stream data lines that failed to decode.",
			},
			[]string{"operation"},
		),
	}
}

// OnRequestStart increments the in-flight gauge.
func (c *Collector) OnRequestStart(e core.RequestStartEvent) {
	c.requestsInFlight.WithLabelValues(e.Method).Inc()
}

// OnRequestEnd records the call and decrements the in-flight gauge.
func (c *Collector) OnRequestEnd(e core.RequestEndEvent) {
	c.requestsInFlight.WithLabelValues(e.Method).Dec()
	c.requestsTotal.WithLabelValues(e.Method, strconv.Itoa(e.StatusCode)).Inc()
	c.requestDuration.WithLabelValues(e.Method).Observe(e.Duration().Seconds())
	if e.Err != nil {
		c.errorsTotal.WithLabelValues(e.Method, e.ErrorKind()).Inc()
	}
}

func (c *Collector) OnRetry(e core.RetryEvent) {
	c.retriesTotal.WithLabelValues(e.Method).Inc()
}

func (c *Collector) OnCircuitStateChange(e core.CircuitEvent) {
	var v float64
	switch e.To {
	case core.CircuitOpen:
		v = 1
	case core.CircuitHalfOpen:
		v = 2
	}
	c.circuitBreakerState.WithLabelValues(e.Group).Set(v)
}

func (c *Collector) OnStreamStart(operation string) {
	c.streamsTotal.WithLabelValues(operation).Inc()
}

func (c *Collector) OnStreamChunk(operation string) {
	c.streamChunksTotal.WithLabelValues(operation).Inc()
}

func (c *Collector) OnStreamLineDropped(operation string) {
	c.streamDroppedTotal.WithLabelValues(operation).Inc()
}

var _ core.TelemetryHook = (*Collector)(nil)
