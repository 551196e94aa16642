package cache

import "github.com/prometheus/client_golang/prometheus"

const (
	backendMemory = "memory"
	backendRedis  = "redis"
)

var cacheLookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by backend and result (hit|miss).",
	},
	[]string{"backend", "result"},
)

func init() {
	prometheus.MustRegister(cacheLookups)
}

func observe(backend string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(backend, result).Inc()
}
