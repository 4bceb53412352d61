// Package metrics provides Prometheus collectors for the relay.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "markov_relay"

// StatusAborted labels requests whose connection was torn down mid-stream.
const StatusAborted = "aborted"

// Simulation runs can take several seconds; chart renders are usually fast.
var latencyBuckets = prometheus.ExponentialBuckets(0.005, 2.5, 10)

// Metrics holds the relay's collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	inFlight      prometheus.Gauge
	upstream      *prometheus.CounterVec
	upstreamWait  *prometheus.HistogramVec
	streamedBytes prometheus.Counter
}

// New creates a Metrics instance with runtime collectors and relay collectors registered.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Inbound requests by route, method and outcome.",
		}, []string{"route", "method", "status_code"}),

		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Inbound request latency by route.",
			Buckets:   latencyBuckets,
		}, []string{"route"}),

		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Requests currently being handled.",
		}),

		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_calls_total",
			Help:      "Calls to the Markov API by backend path and result (status code or \"unreachable\").",
		}, []string{"path", "result"}),

		upstreamWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_header_wait_seconds",
			Help:      "Time from dialing the Markov API until response headers arrive.",
			Buckets:   latencyBuckets,
		}, []string{"path"}),

		streamedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chart_bytes_streamed_total",
			Help:      "Chart image bytes piped from the Markov API to clients.",
		}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.latency,
		m.inFlight,
		m.upstream,
		m.upstreamWait,
		m.streamedBytes,
	)

	return m
}

// TrackInFlight increments the in-flight gauge and returns its decrement.
func (m *Metrics) TrackInFlight() func() {
	m.inFlight.Inc()
	return m.inFlight.Dec
}

// ObserveRequest records one finished inbound request. status is a numeric
// code or StatusAborted.
func (m *Metrics) ObserveRequest(route, method, status string, elapsed time.Duration) {
	m.requests.WithLabelValues(route, NormalizeMethod(method), status).Inc()
	m.latency.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveUpstream records a backend call. A code of 0 means no response arrived.
func (m *Metrics) ObserveUpstream(path string, code int, wait time.Duration) {
	result := "unreachable"
	if code != 0 {
		result = strconv.Itoa(code)
	}
	m.upstream.WithLabelValues(path, result).Inc()
	m.upstreamWait.WithLabelValues(path).Observe(wait.Seconds())
}

// AddStreamed counts chart bytes relayed to a client.
func (m *Metrics) AddStreamed(n int64) {
	m.streamedBytes.Add(float64(n))
}

// knownMethods bounds the method label.
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod maps non-standard methods to "other".
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}
