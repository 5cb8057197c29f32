package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(wsConnections, wsEventsTotal, wsDroppedTotal, wsPrunedTotal) }

var wsConnections = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "ws_connections",
		Help: "Currently registered connections.",
	},
)

var wsEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ws_events_published_total",
		Help: "Envelopes published, labeled by event type.",
	},
	[]string{"event_type"},
)

var wsDroppedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "ws_dropped_connections_total",
		Help: "Connections dropped because their outbound queue overflowed.",
	},
)

var wsPrunedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "ws_pruned_connections_total",
		Help: "Connections removed by the liveness pruner.",
	},
)

func SetWSConnections(n int)      { wsConnections.Set(float64(n)) }
func IncWSEvent(eventType string) { wsEventsTotal.WithLabelValues(norm(eventType)).Inc() }
func IncWSDropped()               { wsDroppedTotal.Inc() }
func IncWSPruned()                { wsPrunedTotal.Inc() }
