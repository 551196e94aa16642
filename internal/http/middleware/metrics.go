package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// unmatchedRoute labels requests that hit no registered route, so scanners
// probing random paths cannot inflate label cardinality.
const unmatchedRoute = "unmatched"

// sizeBuckets spans a 204 body up to a full page of watchlist entries.
var sizeBuckets = prometheus.ExponentialBuckets(256, 4, 8)

var (
	httpReqs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "path", "status"})

	httpLat = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"method", "path"})

	httpInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_inflight",
		Help: "Requests currently being served.",
	})

	httpRespSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_response_size_bytes",
		Help:    "Response body size by method and route.",
		Buckets: sizeBuckets,
	}, []string{"method", "path"})

	idemReplays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "http_idempotent_replays_total",
		Help: "Responses served from the idempotency store.",
	})
)

// Metrics records Prometheus request metrics keyed by the Gin route template,
// e.g. /api/v1/watchlists/:id/games. The /metrics endpoint itself is served
// by promhttp.Handler().
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		httpInflight.Inc()
		start := time.Now()

		defer func() {
			httpInflight.Dec()

			route := c.FullPath()
			if route == "" {
				route = unmatchedRoute
			}
			m := c.Request.Method
			httpReqs.WithLabelValues(m, route, strconv.Itoa(c.Writer.Status())).Inc()
			httpLat.WithLabelValues(m, route).Observe(time.Since(start).Seconds())
			if n := c.Writer.Size(); n >= 0 {
				httpRespSize.WithLabelValues(m, route).Observe(float64(n))
			}
			if c.Writer.Header().Get(HeaderIdempotentReplayed) == "true" {
				idemReplays.Inc()
			}
		}()

		c.Next()
	}
}
