package router

import (
	"net/http"

	"order-settlement/internal/handler"
	"order-settlement/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Orders  *handler.OrderHandler
	Points  *handler.PointsHandler
	POS     *handler.POSHandler
	Returns *handler.ReturnHandler
}

// Options controls authentication and the metrics endpoint.
type Options struct {
	APIKey         string
	MetricsEnabled bool
	MetricsPath    string
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, opts Options, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware in order: Recovery -> RequestID -> Logging -> Metrics -> CORS
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS)

	// Health check endpoint (no authentication required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	if opts.MetricsEnabled {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		h.Points.RegisterRoutes(r)
		h.Returns.RegisterRoutes(r)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(opts.APIKey, logger))
			r.Use(middleware.AdminIdentity(logger))

			h.Orders.RegisterAdminRoutes(r)
			h.Points.RegisterAdminRoutes(r)
			h.POS.RegisterAdminRoutes(r)
			h.Returns.RegisterAdminRoutes(r)
		})
	})

	return r
}
