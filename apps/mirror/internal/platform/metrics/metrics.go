// Package metrics provides Prometheus metrics for treemirror.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tilsley/treemirror/apps/mirror/internal/fetch"
	"github.com/tilsley/treemirror/pkg/api"
)

var _ fetch.Observer = (*Metrics)(nil)

// Metrics groups the collectors of one registry. Each Metrics owns its
// registry so tests can create as many as they like.
type Metrics struct {
	reg *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	rateLimitWaits  prometheus.Counter
	rateLimitWaited prometheus.Counter
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	treeNodes       *prometheus.GaugeVec
}

// New registers treemirror's collectors, plus the Go and process collectors,
// on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "treemirror_github_requests_total",
				Help: "GitHub requests by kind (api, content) and status code",
			},
			[]string{"kind", "status"},
		),
		rateLimitWaits: f.NewCounter(prometheus.CounterOpts{
			Name: "treemirror_rate_limit_waits_total",
			Help: "Number of times the fetcher waited for a rate-limit reset",
		}),
		rateLimitWaited: f.NewCounter(prometheus.CounterOpts{
			Name: "treemirror_rate_limit_wait_seconds_total",
			Help: "Total time spent waiting for rate-limit resets",
		}),
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "treemirror_runs_total",
				Help: "Mirror runs by result",
			},
			[]string{"result"},
		),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "treemirror_run_duration_seconds",
			Help:    "Duration of mirror runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		treeNodes: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "treemirror_last_run_nodes",
				Help: "Directories and files collected by the last successful run",
			},
			[]string{"type"},
		),
	}
}

// ObserveRequest implements fetch.Observer. Transport errors are counted
// with status "error".
func (m *Metrics) ObserveRequest(kind string, statusCode int, err error) {
	status := strconv.Itoa(statusCode)
	if statusCode == 0 && err != nil {
		status = "error"
	}
	m.requestsTotal.WithLabelValues(kind, status).Inc()
}

// ObserveRateLimitWait implements fetch.Observer.
func (m *Metrics) ObserveRateLimitWait(d time.Duration) {
	m.rateLimitWaits.Inc()
	m.rateLimitWaited.Add(d.Seconds())
}

// ObserveRun records the outcome of a finished run.
func (m *Metrics) ObserveRun(summary *api.Summary, elapsed time.Duration) {
	m.runDuration.Observe(elapsed.Seconds())
	if summary == nil || summary.Error != "" {
		m.runsTotal.WithLabelValues("failed").Inc()
		return
	}
	m.runsTotal.WithLabelValues("completed").Inc()
	m.treeNodes.WithLabelValues("directory").Set(float64(summary.Directories))
	m.treeNodes.WithLabelValues("file").Set(float64(summary.Files))
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
