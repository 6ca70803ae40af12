package promotion

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches the promotion endpoints under the caller's prefix.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/promotions/preview", h.Preview)
	r.Get("/promotions", h.List)
	r.Get("/promotions/{id}", h.Get)
}
