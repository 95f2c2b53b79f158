package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"artist-catalog-api/internal/config"
	"artist-catalog-api/internal/handler"
	"artist-catalog-api/internal/middleware"
)

type Handlers struct {
	Auth   *handler.AuthHandler
	Health *handler.HealthHandler
	Audit  *handler.AuditHandler
}

// New builds the request pipeline. The authenticator runs before the rate
// limiter so buckets are keyed by the resolved principal.
func New(
	cfg *config.Config,
	authenticator *middleware.Authenticator,
	rateLimit *middleware.RateLimit,
	h Handlers,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(authenticator.Handler)
	r.Use(rateLimit.Handler)

	r.Get("/health", h.Health.Health)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", h.Auth.Login)
			auth.Post("/refresh", h.Auth.Refresh)
			auth.With(authenticator.RequireAuth).Get("/me", h.Auth.Me)
			if h.Audit != nil {
				auth.With(authenticator.RequireAuth, authenticator.RequireRoles("admin")).Get("/events", h.Audit.List)
			}
		})
	})

	return r
}
