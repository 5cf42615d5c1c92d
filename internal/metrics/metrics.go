// Package metrics exposes Prometheus instrumentation for the daemon's
// install pipeline, runtime pipeline, websocket sessions, and HTTP
// surface. Grounded on the original codebase's internal/metrics/metrics.go for the
// CounterVec/HistogramVec/GaugeVec shape and the response-writer-wrapper
// middleware pattern; relabeled from job/agent-status metrics to this
// domain's install/runtime/websocket/HTTP concerns.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the full set of counters, histograms, and gauges this
// daemon registers.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	InstallsCompleted  *prometheus.CounterVec
	RuntimeTransitions *prometheus.CounterVec
	ServerState        *prometheus.GaugeVec

	WebsocketConnections prometheus.Gauge
	WebsocketAuthFailed  prometheus.Counter

	ServersManaged prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers every metric against a fresh registry, so
// that constructing multiple Metrics (one per test, for instance) never
// collides on prometheus's default global registerer.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerion_http_requests_total",
			Help: "Total number of HTTP requests served by the daemon's API.",
		},
		[]string{"method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alerion_http_request_duration_seconds",
			Help:    "Duration of HTTP requests served by the daemon's API.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.InstallsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerion_installs_completed_total",
			Help: "Total number of installation pipeline runs, by outcome.",
		},
		[]string{"outcome"},
	)

	m.RuntimeTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerion_runtime_transitions_total",
			Help: "Total number of server lifecycle state transitions.",
		},
		[]string{"from", "to"},
	)

	m.ServerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "alerion_server_state",
			Help: "Current lifecycle state of a server (1=current state, 0 otherwise).",
		},
		[]string{"server", "state"},
	)

	m.WebsocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alerion_websocket_connections",
			Help: "Number of currently open websocket sessions across all servers.",
		},
	)

	m.WebsocketAuthFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alerion_websocket_auth_failed_total",
			Help: "Total number of websocket auth frames rejected with a jwt error.",
		},
	)

	m.ServersManaged = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alerion_servers_managed",
			Help: "Number of servers currently registered in the pool.",
		},
	)

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.InstallsCompleted,
		m.RuntimeTransitions,
		m.ServerState,
		m.WebsocketConnections,
		m.WebsocketAuthFailed,
		m.ServersManaged,
	)

	return m
}

// RecordTransition updates the per-server state gauge and the daemon-wide
// transition counter. Designed to be used as a statedb.WithTransitionObserver
// callback.
func (m *Metrics) RecordTransition(server string, from, to string) {
	m.ServerState.WithLabelValues(server, from).Set(0)
	m.ServerState.WithLabelValues(server, to).Set(1)
	m.RuntimeTransitions.WithLabelValues(from, to).Inc()
}

// RecordInstall increments the install outcome counter.
func (m *Metrics) RecordInstall(successful bool) {
	outcome := "success"
	if !successful {
		outcome = "failure"
	}
	m.InstallsCompleted.WithLabelValues(outcome).Inc()
}

// Middleware wraps an http.Handler, recording request count and latency
// by method, path, and status.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, http.StatusText(rw.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// responseWriter captures the status code written by the wrapped handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Handler returns the Prometheus scrape endpoint handler for this
// Metrics instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
