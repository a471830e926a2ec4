/*
Package metrics declares the Prometheus series VSS exports, served on a
separate /metrics listener (kept off the main request path so scraping
never competes with client traffic).
*/
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts every dispatched request by endpoint and
	// resulting HTTP status.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vss_requests_total",
			Help: "Total number of VSS requests by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	// RequestDuration is the per-endpoint request latency distribution.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vss_request_duration_seconds",
			Help:    "VSS request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// PutConflictsTotal counts put batches rejected because some
	// statement in the write set affected zero rows.
	PutConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vss_put_conflicts_total",
			Help: "Total number of put batches rejected with Conflict",
		},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(PutConflictsTotal)
}

// Handler exposes the registered series for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
