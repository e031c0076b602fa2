package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Account endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/users", s.handleRegister)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/pots", func(r chi.Router) {
				r.Get("/", s.handleListPots)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetPot)
					r.Put("/config", s.handlePushConfig)
					r.Get("/measurements", s.handleMeasurements)
					r.Get("/watering", s.handleWateringStatus)

					r.Route("/actions", func(r chi.Router) {
						r.Post("/pair", s.handlePair)
						r.Post("/water", s.handleWater)
						r.Post("/transfer", s.handleTransfer)
					})
				})
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
