package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheRequestsTotal, storeMode, storeFallbacksTotal) }

var cacheRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cache_requests_total",
		Help: "Store reads by namespace and result (hit/miss/error).",
	},
	[]string{"namespace", "result"},
)

var storeMode = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "store_backed",
		Help: "1 while the external backing store is in use, 0 in degraded mode.",
	},
)

var storeFallbacksTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "store_fallbacks_total",
		Help: "Count of operations that fell back to the in-process store.",
	},
)

func IncCacheRequest(namespace, result string) {
	cacheRequestsTotal.WithLabelValues(norm(namespace), norm(result)).Inc()
}

func SetStoreBacked(backed bool) {
	if backed {
		storeMode.Set(1)
	} else {
		storeMode.Set(0)
	}
}

func IncStoreFallback() { storeFallbacksTotal.Inc() }
