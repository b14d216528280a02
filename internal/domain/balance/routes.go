package balance

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the balance router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.GetBalance)
		r.Get("/history", h.History)
	})

	return r
}
