package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthFunc probes a dependency. A nil func means always healthy.
type HealthFunc func(ctx context.Context) error

// NewRouter assembles the HTTP surface: the websocket endpoints, the
// share-link API, health, and metrics.
func NewRouter(log *slog.Logger, h *Handler, health HealthFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if health != nil {
			if err := health(req.Context()); err != nil {
				log.Warn("health probe failed", "error", err)
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/ws/events/{shareToken}", h.ServeEvent)
	r.Get("/ws/user", h.ServeUser)
	r.Post("/api/events/{eventID}/share-link", h.CreateShareLink)

	return r
}
