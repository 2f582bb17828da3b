package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rendersync/internal/http/handlers"
	"rendersync/internal/middleware"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
	)
	if app.Cfg != nil && len(app.Cfg.CORSAllowedOrigins) > 0 {
		r.Use(middleware.CORS(app.Cfg.CORSAllowedOrigins))
	}

	rateLimit := 60
	if app.Cfg != nil && app.Cfg.RateLimitPerMin > 0 {
		rateLimit = app.Cfg.RateLimitPerMin
	}

	r.Get("/v1/healthz", app.Health)
	if app.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(app.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	// Provider callbacks skip the per-client rate limit; they arrive in
	// bursts from a handful of provider IPs.
	r.Post("/v1/webhooks/render", app.WebhookRender)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(rateLimit, time.Minute))

		r.Get("/v1/wallet", app.WalletGet)

		r.Route("/v1/jobs", func(r chi.Router) {
			r.Post("/", app.JobsSubmit)
			r.Get("/", app.JobsList)
			r.Get("/{id}", app.JobGet)
			r.Get("/{id}/events", app.JobEvents)
		})
	})

	r.Route("/v1/internal", func(r chi.Router) {
		r.Use(app.RequireAdmin)
		r.Get("/poll", app.PollTrigger)
		r.Post("/poll", app.PollTrigger)
	})

	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(app.RequireAdmin)
		r.Post("/jobs/{jobId}/resync", app.AdminJobResync)
	})

	return r
}
