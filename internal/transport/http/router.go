package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"wdicli/internal/config"
	apierrors "wdicli/internal/errors"
	"wdicli/internal/infrastructure"
	"wdicli/internal/middleware"
	"wdicli/internal/services"
)

// RouterDeps holds everything the router needs.
type RouterDeps struct {
	Config    *config.Config
	Service   *services.AnalyticsService
	Store     *services.DatasetStore
	Telemetry *infrastructure.OTelProviders
	Logger    *slog.Logger
	Version   string
}

// NewRouter assembles the full HTTP surface: middleware chain, API
// routes and the Prometheus scrape endpoint.
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger
	errorHandler := apierrors.NewErrorHandler(logger, false)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Compress(5))
	r.Use(middleware.Timeout(60 * time.Second))
	if deps.Telemetry != nil {
		r.Use(middleware.Metrics(deps.Telemetry.Metrics))
	}
	if deps.Config.Limits.RateLimitRPS > 0 {
		limiter := middleware.NewRateLimiter(deps.Config.Limits.RateLimitRPS, deps.Config.Limits.RateLimitBurst, logger)
		r.Use(limiter.Handler)
	}

	datasetHandler := NewDatasetHandler(deps.Service, logger, errorHandler, deps.Config.Limits.MaxUploadBytes)
	analyticsHandler := NewAnalyticsHandler(deps.Service, logger, errorHandler)
	duneHandler := NewDuneHandler(deps.Service, logger, errorHandler)
	healthHandler := NewHealthHandler(deps.Store, logger, deps.Version)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Mount("/health", healthHandler.Routes())
		r.Mount("/dune", duneHandler.Routes())
		r.Route("/datasets", func(r chi.Router) {
			r.Post("/", datasetHandler.Upload)
			r.Get("/", datasetHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(datasetHandler.DatasetCtx)
				r.Get("/", datasetHandler.Get)
				r.Delete("/", datasetHandler.Delete)
				r.Post("/analyze", analyticsHandler.Analyze)
				r.Get("/summary", analyticsHandler.Summary)
				r.Get("/timeseries", analyticsHandler.TimeSeries)
				r.Get("/top", analyticsHandler.TopAddresses)
				r.Get("/cohort", analyticsHandler.Cohort)
				r.Get("/export/{view}", analyticsHandler.Export)
			})
		})
	})

	if deps.Telemetry != nil {
		r.Method(http.MethodGet, "/metrics", deps.Telemetry.PrometheusHTTP)
	}

	r.NotFound(errorHandler.NotFound)

	return r
}
