// Package httptransport assembles the API surface. Handlers stay thin; all
// domain decisions live in the feature services.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"recrusearch/internal/platform/metrics"
	"recrusearch/internal/platform/middleware"
	"recrusearch/internal/transport/http/shared"
)

// Registrar mounts a feature's public routes.
type Registrar interface {
	Register(r chi.Router)
}

// AdminRegistrar mounts a feature's operator-only routes.
type AdminRegistrar interface {
	RegisterAdmin(r chi.Router)
}

// HealthChecker reports a dependency's liveness for /healthz.
type HealthChecker func(r *http.Request) error

// RouterConfig carries everything the router needs to assemble the surface.
type RouterConfig struct {
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	JWTValidator  middleware.JWTValidator
	AdminKeyHash  []byte
	Handlers      []Registrar
	AdminHandlers []AdminRegistrar
	Health        []HealthChecker
}

// NewRouter wires the middleware chain and mounts every feature handler.
// Public routes require a bearer token; admin routes require the operator
// key; /healthz and /metrics are open.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.Latency(cfg.Metrics))

	r.Get("/healthz", healthHandler(cfg.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAuth(cfg.JWTValidator, cfg.Logger))
		for _, h := range cfg.Handlers {
			h.Register(r)
		}
	})

	if len(cfg.AdminHandlers) > 0 {
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdminKey(cfg.AdminKeyHash, cfg.Logger))
			for _, h := range cfg.AdminHandlers {
				h.RegisterAdmin(r)
			}
		})
	}

	return r
}

func healthHandler(checks []HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check(r); err != nil {
				shared.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
					"error":  err.Error(),
				})
				return
			}
		}
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
