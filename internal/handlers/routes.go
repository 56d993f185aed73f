package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(h.Auth.Identify)

	// Static files (served from embedded filesystem)
	r.Handle("/static/*", http.StripPrefix("/static/", h.staticServer))

	r.Get("/healthz", h.handleHealth)

	// Pages
	r.Get("/", h.handleIndex)
	r.Get("/rewards", h.handleRewardsPage)
	r.Get("/rewards/{id}", h.handleClaimPage)

	// WebSocket
	r.Get("/ws", h.Hub.ServeWs)

	// Auth API
	r.Post("/api/auth/login", h.handleLogin)
	r.Post("/api/auth/logout", h.handleLogout)
	r.Get("/api/auth/me", h.handleMe)

	// Wheel API. Spin and view are public so that the configuration gate
	// is reported before the login gate.
	r.Get("/api/wheel", h.handleGetWheel)
	r.Post("/api/wheel/spin", h.handleSpin)
	r.Get("/api/settings", h.handleGetSettings)

	// Signed-in API
	r.Group(func(r chi.Router) {
		r.Use(h.Auth.RequireUser)

		r.Get("/api/wheel/result", h.handleGetResult)
		r.Post("/api/wheel/nudge", h.handleNudge)
		r.Get("/api/wheel/history", h.handleGetHistory)

		r.Get("/api/rewards", h.handleGetRewards)
		r.Get("/api/rewards/{id}/qr", h.handleGetRewardQR)
	})

	return r
}
