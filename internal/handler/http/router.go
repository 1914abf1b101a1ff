package http

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmartinezt1/cs-products-sub000/pkg/health"
	"github.com/angelmartinezt1/cs-products-sub000/pkg/middleware"
)

// RouterConfig wires the HTTP surface together.
type RouterConfig struct {
	ServiceName string
	Algolia     *AlgoliaHandler
	Browse      *BrowseHandler
	Health      *health.Handler
	Logger      *slog.Logger
}

// NewRouter builds the chi router with the standard middleware stack.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	// Compatible search surface. Batch clients address the literal index
	// name "*", which the {index} parameter captures.
	r.Post("/1/indexes/{index}/query", cfg.Algolia.Query)
	r.Post("/1/indexes/{index}/queries", cfg.Algolia.MultiQuery)

	r.Route("/api/v1/browse", func(r chi.Router) {
		r.Get("/", cfg.Browse.List)
		r.Get("/facets", cfg.Browse.Facets)
	})

	return r
}
