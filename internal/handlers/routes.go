package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts the public API onto the router.
func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.Health)
	router.Route("/api/v1/territories", func(r chi.Router) {
		r.Post("/balance/{territory_id}", h.Balance)
		r.Post("/divide/{territory_id}", h.Divide)
		r.Post("/restore/{territory_id}", h.Restore)
		r.Get("/status/{job_id}", h.Status)
	})
}
