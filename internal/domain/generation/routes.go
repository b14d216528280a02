package generation

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns generation routes, all behind authentication.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/", h.Generate)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
	})

	return r
}
