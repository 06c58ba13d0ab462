package recall

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iammorganparry/memorize-mcp/internal/memoryservice"
)

// HealthChecker reports whether the process is ready to serve recall
// requests, surfaced on /healthz for editor-hook supervisors.
type HealthChecker interface {
	Ready() (storeOpen, embedderReady bool)
}

// NewRouter builds the chi.Mux served on --hook-port: /api/recall plus the
// /healthz and /metrics ambient endpoints. No authentication — spec.md
// states this surface is only ever bound to localhost.
func NewRouter(svc *memoryservice.Service, health HealthChecker, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))
	r.Use(CORS)

	h := &handler{svc: svc}
	r.Get("/api/recall", h.Recall)
	r.Get("/healthz", healthzHandler(health))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func healthzHandler(health HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeOpen, embedderReady := health.Ready()
		status := http.StatusOK
		if !storeOpen || !embedderReady {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]bool{
			"store_open":     storeOpen,
			"embedder_ready": embedderReady,
		})
	}
}
