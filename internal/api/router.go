package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/plugins", func(r chi.Router) {
			r.Get("/", s.handleListPlugins)
			r.Post("/", s.handleRegisterPlugin)
			r.Post("/reload", s.handleReloadPlugins)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetPlugin)
				r.Delete("/", s.handleDeletePlugin)
			})
		})

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/", s.handleCreateDevice)
			r.Get("/{id}/values", s.handleDeviceValues)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.handleRulesSummary)
			r.Post("/reload", s.handleReloadRules)
		})

		r.Post("/commands", s.handleSendCommand)
		r.Post("/crud", s.handleBroadcastCrud)
	})

	return r
}
