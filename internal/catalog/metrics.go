package catalog

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	upstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_upstream_requests_total",
			Help: "Requests sent to the catalog API by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)
	upstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_upstream_request_duration_seconds",
			Help:    "Latency of catalog API requests by endpoint.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(upstreamRequests, upstreamLatency)
}

func observeUpstream(endpoint, code string, started time.Time) {
	upstreamRequests.WithLabelValues(endpoint, code).Inc()
	upstreamLatency.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
}
