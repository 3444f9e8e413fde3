// Package metrics holds the Prometheus collectors exported by Grabber. The
// collectors are registered against a registry owned by the Metrics value
// rather than the global default registry, so each gateway (and each test)
// gets its own.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestLatency  *prometheus.HistogramVec
	ActiveDownloads prometheus.Gauge
	ToolRunsTotal   *prometheus.CounterVec
	ToolLatency     *prometheus.HistogramVec
	BytesServed     *prometheus.CounterVec
}

const namespace = "grabber"

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by route and status code",
		}, []string{"route", "status"}),
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by route",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 30, 60, 180, 600},
		}, []string{"route"}),
		ActiveDownloads: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_downloads",
			Help:      "Number of downloads currently being streamed to clients",
		}),
		ToolRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_runs_total",
			Help:      "Total extraction tool invocations by operation, platform and outcome",
		}, []string{"op", "platform", "outcome"}),
		ToolLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_run_duration_seconds",
			Help:      "Extraction tool invocation duration by operation",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 180, 600},
		}, []string{"op"}),
		BytesServed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_served_total",
			Help:      "Total media bytes written to clients by platform",
		}, []string{"platform"}),
	}
}

// ObserveTool records the outcome of a single extraction tool invocation.
func (m *Metrics) ObserveTool(op string, platform string, duration time.Duration, err error) {
	m.ToolRunsTotal.WithLabelValues(op, platformLabel(platform), outcome(err)).Inc()
	m.ToolLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// ObserveRequest records a completed HTTP request.
func (m *Metrics) ObserveRequest(route string, status int, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.RequestLatency.WithLabelValues(route).Observe(duration.Seconds())
}

func (m *Metrics) DownloadStarted(string) {
	m.ActiveDownloads.Inc()
}

func (m *Metrics) DownloadFinished(platform string, written int64) {
	m.ActiveDownloads.Dec()
	m.BytesServed.WithLabelValues(platformLabel(platform)).Add(float64(written))
}

// Handler returns an HTTP handler exposing this registry in the Prometheus
// text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "failure"
	}
}

func platformLabel(platform string) string {
	if platform == "" {
		return "unknown"
	}

	return platform
}
