package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public.
	r.Get("/health", g.handleHealth())
	if g.metrics != nil {
		r.Handle("/metrics", g.metrics)
	}

	// Everything else requires the bearer token. Not mounted without one.
	if g.config.BearerToken != "" {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.BearerToken, g.audit, g.limiter))
			r.Get("/status", g.handleStatus())
			r.Get("/ws/events", g.hub.ServeHTTP)
			r.Route("/api", func(r chi.Router) {
				r.Get("/cycles", g.handleCycles())
				r.Get("/accounts/{address}", g.handleAccount())
			})
		})
	}

	return r
}
