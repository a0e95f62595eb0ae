package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-compositor/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// Read-only
			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermContentRead))

				r.Post("/auth/ws-ticket", s.handleWSTicket)
				r.Get("/metrics", s.handleMetrics)
				r.Get("/contents", s.handleListContents)
				r.Get("/contents/{id}", s.handleGetContent)
				r.Get("/contents/{id}/history", s.handleContentHistory)
				r.Get("/categories", s.handleListCategories)
				r.Get("/commands", s.handleListCommands)
				r.Get("/audit", s.handleListAuditLogs)
			})

			// Content lifecycle
			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermContentControl))

				r.Post("/contents/{id}/ready", s.handleRequestReady)
				r.Post("/contents/{id}/show", s.handleShow)
				r.Post("/contents/{id}/hide", s.handleHide)
				r.Post("/contents/{id}/release", s.handleRelease)
				r.Post("/contents/{id}/accept-stop-offer", s.handleAcceptStopOffer)
				r.Post("/contents/{id}/assign", s.handleAssignDisplayBuffer)

				r.Post("/links/offscreen-buffer", s.handleLinkOffscreenBuffer)
				r.Post("/links/data", s.handleLinkData)
				r.Put("/displays/{display}/buffers/{buffer}/clear-color", s.handleSetClearColor)
			})

			// Category configuration
			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermCategoryManage))

				r.Put("/categories/{id}/size", s.handleSetCategorySize)
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
