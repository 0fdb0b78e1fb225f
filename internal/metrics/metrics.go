// Package metrics exposes the auth bridge's Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "authbridge"

// Session check results.
const (
	SessionAuthenticated = "authenticated"
	SessionAnonymous     = "anonymous"
	SessionRefreshed     = "refreshed"
	SessionInvalid       = "invalid"
)

// Recorder is what the server reports to.
type Recorder interface {
	RecordAuthOperation(operation, outcome string)
	RecordSessionCheck(result string, duration time.Duration)
	RecordRateLimited(route string)
}

var _ Recorder = (*Collector)(nil)

type Collector struct {
	authOperations *prometheus.CounterVec
	sessionChecks  *prometheus.CounterVec
	sessionLatency prometheus.Histogram
	rateLimited    *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_operations_total",
			Help:      "Auth operations by operation and outcome (success or the error code).",
		}, []string{"operation", "outcome"}),
		sessionChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_checks_total",
			Help:      "Server side session cookie checks by result.",
		}, []string{"result"}),
		sessionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_check_seconds",
			Help:      "Time spent reading and verifying the session cookie.",
			Buckets:   prometheus.DefBuckets,
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.authOperations,
		c.sessionChecks,
		c.sessionLatency,
		c.rateLimited,
	)
	return c
}

// RecordAuthOperation counts one auth operation. outcome is "success" or an error code.
func (c *Collector) RecordAuthOperation(operation, outcome string) {
	if outcome == "" {
		outcome = "error"
	}
	c.authOperations.WithLabelValues(operation, outcome).Inc()
}

func (c *Collector) RecordSessionCheck(result string, duration time.Duration) {
	c.sessionChecks.WithLabelValues(result).Inc()
	c.sessionLatency.Observe(duration.Seconds())
}

func (c *Collector) RecordRateLimited(route string) {
	c.rateLimited.WithLabelValues(route).Inc()
}

// Handler serves the gathered metrics for scraping.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
