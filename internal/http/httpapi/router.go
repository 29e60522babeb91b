package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mediagen/internal/http/handlers"
	"mediagen/internal/infra"
	"mediagen/internal/middleware"
)

// NewRouter assembles the HTTP surface of the orchestrator service.
func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger, countryLookup middleware.CountryLookup) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.Logger(logger),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.I18N(cfg.DefaultLocale, countryLookup),
		middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Post("/", app.JobsRegister)
		r.Get("/", app.JobsList)
		r.Get("/{job_id}", app.JobsGet)
		r.Delete("/{job_id}", app.JobsCancel)
		r.Post("/{job_id}/refresh", app.JobsRefresh)
		r.Get("/{job_id}/stream", app.JobsStream)
	})

	r.Get("/v1/history", app.HistoryList)

	return r
}
