package presence

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bouncehub_presence_sessions_active",
		Help: "Open presence sessions on this instance.",
	})
	joinsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bouncehub_presence_joins_total",
		Help: "First joins announced to event audiences.",
	})
	reconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bouncehub_presence_reconnects_total",
		Help: "Joins absorbed as reconnects inside the grace window.",
	})
	chatsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bouncehub_presence_chat_messages_total",
		Help: "Accepted attendee chat messages.",
	})
)
