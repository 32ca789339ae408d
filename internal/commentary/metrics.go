package commentary

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bouncehub_commentary_generated_total",
		Help: "Commentary messages generated and broadcast",
	})

	generationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bouncehub_commentary_generation_failures_total",
		Help: "Failed generative-text calls (logged and skipped)",
	})

	eventsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bouncehub_commentary_events_dropped_total",
		Help: "Domain events discarded without output, by reason",
	}, []string{"reason"})

	enginesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bouncehub_commentary_engines_active",
		Help: "Commentary engines currently running",
	})
)
