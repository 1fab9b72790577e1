package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the coordinator's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	searchesTotal  *prometheus.CounterVec
	nodeCallsTotal *prometheus.CounterVec
	searchDuration prometheus.Histogram
	activeNodes    prometheus.Gauge
}

// New creates and registers all collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		searchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "search_coordinator",
			Name:      "searches_total",
			Help:      "Total distributed searches by outcome",
		}, []string{"status"}),
		nodeCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "search_coordinator",
			Name:      "node_calls_total",
			Help:      "Total per-node search calls by outcome",
		}, []string{"node", "status"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "search_coordinator",
			Name:      "search_duration_seconds",
			Help:      "End-to-end duration of one distributed search",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		activeNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "search_coordinator",
			Name:      "active_nodes",
			Help:      "Nodes currently eligible for queries",
		}),
	}

	reg.MustRegister(m.searchesTotal, m.nodeCallsTotal, m.searchDuration, m.activeNodes)
	return m
}

func (m *Metrics) RecordSearch(success bool, seconds float64) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.searchesTotal.WithLabelValues(status).Inc()
	m.searchDuration.Observe(seconds)
}

func (m *Metrics) RecordNodeCall(nodeID string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.nodeCallsTotal.WithLabelValues(nodeID, status).Inc()
}

func (m *Metrics) SetActiveNodes(n int) {
	m.activeNodes.Set(float64(n))
}

// Handler exposes the private registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
