package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	platformMW "autoforms/internal/platform/middleware"
	rlMiddleware "autoforms/internal/ratelimit/middleware"
	"autoforms/internal/ratelimit/models"
	"autoforms/pkg/requestclock"
)

// Authenticator resolves bearer tokens into the request context's user ID.
type Authenticator interface {
	Middleware(next http.Handler) http.Handler
}

// NewRouter wires all public endpoints with the middleware stack.
func NewRouter(h *Handler, auth Authenticator, limits *rlMiddleware.Middleware, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(platformMW.Recovery(logger))
	r.Use(platformMW.RequestID)
	r.Use(requestclock.Middleware)
	r.Use(platformMW.ClientIP)
	r.Use(platformMW.Logger(logger))
	r.Use(platformMW.Timeout(30 * time.Second))
	r.Use(auth.Middleware)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Generation enforces its own limits inside the service (cache
		// hits must not consume budget), so no limiter middleware here.
		r.Post("/generate", h.handleGenerate)

		r.With(limits.PerIP(models.RuleAPIPerIP)).
			Get("/limits/generation", h.handleLimitStatus(models.RuleFormGeneration))
		r.With(limits.PerIP(models.RuleAPIPerIP)).
			Get("/limits/api", h.handleLimitStatus(models.RuleAPIPerUser))

		r.Get("/cache/stats", h.handleCacheStats)
		r.Post("/cache/clear", h.handleCacheClear)
	})

	return r
}
