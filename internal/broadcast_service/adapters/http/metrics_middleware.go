package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	adminRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "broadcast",
			Name:      "admin_http_requests_total",
			Help:      "Admin API requests by route and status.",
		},
		[]string{"method", "path", "status_code"},
	)

	adminRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "broadcast",
			Name:      "admin_http_request_duration_seconds",
			Help:      "Admin API request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware records request counts and latency per chi route pattern.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		adminRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		adminRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
