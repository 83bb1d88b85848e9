package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/CureAnalytics/internal/interfaces/http/handlers"
	"github.com/turtacn/CureAnalytics/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware of the route tree.
// Nil members are skipped.
type RouterConfig struct {
	AnalysisHandler *handlers.AnalysisHandler
	HealthHandler   *handlers.HealthHandler

	RateLimiter *middleware.RateLimiter
	CORSOrigins []string
	APIKeys     []string
	Logging     middleware.LoggingConfig

	Logger           logging.Logger
	MetricsCollector prometheus.MetricsCollector
	Metrics          *prometheus.AppMetrics
}

// NewRouter builds the HTTP route tree: public probes and metrics at the
// root, the analysis API under /api/v1.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogging(cfg.Logger, cfg.Logging))
	r.Use(middleware.Metrics(cfg.Metrics))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Handler)
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.Handle("/metrics", cfg.MetricsCollector.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.APIKeyAuth(cfg.APIKeys))
		registerAnalysisRoutes(api, cfg.AnalysisHandler)
	})

	return r
}

func registerAnalysisRoutes(r chi.Router, h *handlers.AnalysisHandler) {
	if h == nil {
		return
	}
	r.Post("/analyze", h.AnalyzeText)
	r.Get("/search", h.Search)
	r.Get("/compounds/{name}/partners", h.Partners)

	r.Route("/papers", func(pr chi.Router) {
		pr.Post("/", h.CreatePaper)
		pr.Post("/rank", h.Rank)

		pr.Route("/{id}", func(item chi.Router) {
			item.Get("/", h.GetPaper)
			item.Post("/analyze", h.AnalyzePaper)
			item.Get("/report", h.PaperReport)
		})
	})
}
