// Package httptransport assembles the public HTTP surface: the middleware
// chain, the domain handlers and the operational endpoints.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	devicehandler "mobilefix/internal/devices/handler"
	"mobilefix/internal/platform/metrics"
	"mobilefix/internal/platform/middleware"
	repairhandler "mobilefix/internal/repairs/handler"
	userhandler "mobilefix/internal/users/handler"
)

const defaultRequestTimeout = 30 * time.Second

// Deps carries everything the router needs. Gatherer is optional; when nil
// the /metrics endpoint is not mounted.
type Deps struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Users    *userhandler.Handler
	Devices  *devicehandler.Handler
	Repairs  *repairhandler.Handler
}

// NewRouter builds the full application router. Middleware order matters:
// the request ID must exist before anything logs, and recovery must wrap
// everything that can panic.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Timeout(defaultRequestTimeout))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.Latency(d.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	d.Users.Register(r)
	d.Devices.Register(r)
	d.Repairs.Register(r)

	return r
}
