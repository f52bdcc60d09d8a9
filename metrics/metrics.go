// Package metrics collects and exposes Prometheus metrics for the
// activity engine's HTTP surface and the close-period operation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector registers and records the engine's metrics.
type Collector struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	periodCloses     prometheus.Counter
	periodCloseNoops prometheus.Counter
	exports          *prometheus.CounterVec
	activitiesLogged prometheus.Counter
	cacheFallbacks   prometheus.Counter
}

// NewCollector creates a Collector backed by its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "activity_http_requests_total",
			Help: "HTTP requests by status code.",
		}, []string{"status_code"}),
		periodCloses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "activity_period_closes_total",
			Help: "Successful period close operations.",
		}),
		periodCloseNoops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "activity_period_close_noops_total",
			Help: "Close attempts on an already-closed period.",
		}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "activity_exports_total",
			Help: "History/ranking exports by format.",
		}, []string{"format"}),
		activitiesLogged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "activity_records_logged_total",
			Help: "Activity records created.",
		}),
		cacheFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "activity_cache_fallbacks_total",
			Help: "Live leaderboard reads that fell back to SQL.",
		}),
	}

	c.registry.MustRegister(
		c.httpRequests,
		c.periodCloses,
		c.periodCloseNoops,
		c.exports,
		c.activitiesLogged,
		c.cacheFallbacks,
	)
	return c
}

func (c *Collector) RecordHTTPStatus(code int) {
	c.httpRequests.WithLabelValues(statusLabel(code)).Inc()
}

func (c *Collector) RecordPeriodClose(noop bool) {
	if noop {
		c.periodCloseNoops.Inc()
		return
	}
	c.periodCloses.Inc()
}

func (c *Collector) RecordExport(format string)  { c.exports.WithLabelValues(format).Inc() }
func (c *Collector) RecordActivityLogged()       { c.activitiesLogged.Inc() }
func (c *Collector) RecordCacheFallback()        { c.cacheFallbacks.Inc() }

// Handler returns the /metrics endpoint handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func statusLabel(code int) string {
	// Bucket by class; per-code cardinality isn't worth it here.
	switch {
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
