package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public — no auth required.
	r.Get("/health", g.handleHealth())
	r.Get("/metrics", g.metrics.Handler().ServeHTTP)

	// Session WebSocket. Bearer auth runs inside the handshake so the
	// 401 hint reaches the client before the upgrade.
	r.Get("/ws/chat", g.handleWS())

	// Status — auth required. Not mounted if no auth configured.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(g.authMiddleware)
			r.Get("/status", g.handleStatus())
		})
	}

	return r
}
