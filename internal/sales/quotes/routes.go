package quotes

import "github.com/go-chi/chi/v5"

// MountRoutes registers the quote endpoints on the given router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/quotes", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Post("/", h.Update)
			r.Post("/send", h.Send)
			r.Post("/accept", h.Accept)
			r.Post("/reject", h.Reject)
			r.Post("/promotions/preview", h.Preview)
			r.Post("/promotions/apply", h.Apply)
		})
	})
}
