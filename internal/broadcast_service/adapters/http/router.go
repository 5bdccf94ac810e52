package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/app"
)

// NewRouter builds the admin API. /health and /metrics are unauthenticated; /v1 needs an
// operator bearer token.
func NewRouter(core *app.Core, jwtSecret string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(MetricsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	admin := NewAdminHandler(core, logger)
	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(OperatorAuth(jwtSecret, core.Registry.Operators(), logger))
		admin.RegisterRoutes(v1)
	})
	return r
}
