package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder captures request and retrieval metrics for the API server
type Recorder interface {
	ObserveRequest(method, route string, status int, duration time.Duration)
	ObserveRetrieval(outcome string)
}

// Noop implements Recorder without emitting anything
type Noop struct{}

func (Noop) ObserveRequest(string, string, int, time.Duration) {}
func (Noop) ObserveRetrieval(string)                           {}

// Prom implements Recorder backed by its own Prometheus registry
type Prom struct {
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	retrievals *prometheus.CounterVec
}

// NewProm creates a Prom recorder with metric names under namespace.
// The registry also carries the Go runtime and process collectors.
func NewProm(namespace string) *Prom {
	p := &Prom{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method/route/status",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method/route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		retrievals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrievals_total",
			Help:      "Post retrievals by outcome",
		}, []string{"outcome"}),
	}

	p.registry.MustRegister(
		p.requests,
		p.latency,
		p.retrievals,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prom) ObserveRequest(method, route string, status int, duration time.Duration) {
	p.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.latency.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (p *Prom) ObserveRetrieval(outcome string) {
	p.retrievals.WithLabelValues(outcome).Inc()
}

// Gatherer exposes the registry, mainly for tests
func (p *Prom) Gatherer() prometheus.Gatherer {
	return p.registry
}

// Handler returns an HTTP handler for /metrics
func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
