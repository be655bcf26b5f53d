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

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/status", s.handleStatus)
			r.Get("/audit", s.handleListAudit)

			// Administration. Every endpoint below changes how the door
			// can be opened, so all of them require the admin role.
			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)

				r.Put("/mode", s.handleSetMode)
				r.Put("/credentials/{role}", s.handleSetCredential)

				r.Route("/fingerprints", func(r chi.Router) {
					r.Get("/", s.handleListFingerprints)
					r.Post("/", s.handleEnrollFingerprint)
					r.Delete("/", s.handleDeleteAllFingerprints)
					r.Delete("/{slot}", s.handleDeleteFingerprint)
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
