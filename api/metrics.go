package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smallnest/agentscaffold/domain"
)

// Metrics holds the Prometheus collectors of the server.
type Metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	invocations *prometheus.CounterVec
	invokeTime  *prometheus.HistogramVec
	tools       *prometheus.CounterVec
}

// NewMetrics registers the collectors on a fresh registry together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentscaffold",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentscaffold",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentscaffold",
			Name:      "agent_invocations_total",
			Help:      "Agent runs by graph and outcome.",
		}, []string{"graph", "outcome"}),
		invokeTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentscaffold",
			Name:      "agent_invocation_duration_seconds",
			Help:      "Agent run latency by graph.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"graph"}),
		tools: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentscaffold",
			Name:      "tool_executions_total",
			Help:      "Tool executions by tool and outcome.",
		}, []string{"tool", "outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.latency, m.invocations, m.invokeTime, m.tools,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveInvocation records a finished agent run. It has the shape of
// service.InvokeObserver.
func (m *Metrics) ObserveInvocation(agent *domain.Agent, outcome string, elapsed time.Duration) {
	graph := string(agent.GraphOrDefault())
	m.invocations.WithLabelValues(graph, outcome).Inc()
	m.invokeTime.WithLabelValues(graph).Observe(elapsed.Seconds())
}

// ObserveTool records a tool execution. It has the shape of tool.ExecuteHook.
func (m *Metrics) ObserveTool(name string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.tools.WithLabelValues(name, outcome).Inc()
}

func (m *Metrics) observeRequest(r *http.Request, status int, elapsed time.Duration) {
	route := "unmatched"
	if cur := mux.CurrentRoute(r); cur != nil {
		if tpl, err := cur.GetPathTemplate(); err == nil {
			route = tpl
		}
	}
	m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route, r.Method).Observe(elapsed.Seconds())
}
