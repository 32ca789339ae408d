package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bouncehub_hub_published_total",
		Help: "Messages published through the hub, by audience kind",
	}, []string{"audience"})

	deliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bouncehub_hub_delivered_total",
		Help: "Messages delivered to local connections",
	})

	deadConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bouncehub_hub_dead_connections_total",
		Help: "Connections pruned after a failed send",
	})

	busFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bouncehub_hub_bus_publish_fallbacks_total",
		Help: "Publishes that degraded to local-only delivery because the bus was unreachable",
	})

	busReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bouncehub_hub_bus_reconnects_total",
		Help: "Bus listener reconnect attempts",
	})
)
