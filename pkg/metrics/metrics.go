// Package metrics exposes Prometheus instrumentation for bridge
// operations and the HTTP serving mode.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bridge's instrument set. All instruments are
// registered on the registry passed to New; tests pass a fresh one.
type Metrics struct {
	registry *prometheus.Registry

	AgentLoads    *prometheus.CounterVec
	AgentCalls    *prometheus.CounterVec
	AgentCallTime *prometheus.HistogramVec
	RegisteredNow prometheus.Gauge
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New registers the bridge instruments on reg. Pass nil to use a fresh
// registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		AgentLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentbridge_agent_loads_total",
			Help: "Agent load attempts by outcome.",
		}, []string{"outcome"}),
		AgentCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentbridge_agent_calls_total",
			Help: "Proxied agent operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		AgentCallTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentbridge_agent_call_duration_seconds",
			Help:    "Proxied agent operation duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		RegisteredNow: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agentbridge_registered_agents",
			Help: "Agents currently registered.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentbridge_http_requests_total",
			Help: "HTTP requests by path and status code.",
		}, []string{"path", "code"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentbridge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
	}
}

// ObserveCall records one proxied operation.
func (m *Metrics) ObserveCall(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.AgentCalls.WithLabelValues(operation, outcome).Inc()
	m.AgentCallTime.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveLoad records one load attempt.
func (m *Metrics) ObserveLoad(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.AgentLoads.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware instruments HTTP handlers with request counts and latency.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.httpRequests.WithLabelValues(r.URL.Path, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
