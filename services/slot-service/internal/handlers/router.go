package handlers

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/md-rashed-zaman/apptslots/libs/auth"
	"github.com/md-rashed-zaman/apptslots/libs/httpx"
)

const maxAdminBody = 1 << 20

type RouterConfig struct {
	Slots    *SlotsHandler
	Admin    *AdminHandler
	Verifier *auth.Verifier
	// Limiter guards the public slot route; nil disables rate limiting.
	Limiter httpx.Limiter
	CORS    httpx.CORSPolicy
	Logger  *slog.Logger
}

// Mount registers the /api/v1 routes on r, which may already serve health endpoints.
func Mount(r chi.Router, cfg RouterConfig) {
	r.Route("/api/v1", func(api chi.Router) {
		api.Use(httpx.WithRequestID)
		api.Use(httpx.WithRecover(cfg.Logger))
		api.Use(httpx.WithAccessLog(cfg.Logger))
		api.Use(httpx.WithCORS(cfg.CORS))
		api.Use(render.SetContentType(render.ContentTypeJSON))

		api.Route("/appointment-types/{typeID}", func(rt chi.Router) {
			rt.Group(func(pub chi.Router) {
				if cfg.Limiter != nil {
					pub.Use(httpx.RateLimit(cfg.Limiter, cfg.Logger, true))
				}
				pub.Get("/slots", cfg.Slots.Get)
			})
			rt.Group(func(adm chi.Router) {
				adm.Use(auth.RequireRoles(cfg.Verifier, "owner", "admin"))
				adm.Use(httpx.WithBodyLimit(maxAdminBody))
				adm.Put("/", cfg.Admin.Put)
			})
		})
	})
}
