package payment

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the payment router
func (h *Handler) Routes(authMiddleware, adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/chain/confirm", h.ConfirmChain)
		r.Post("/card/confirm", h.ConfirmCard)
	})

	r.Group(func(r chi.Router) {
		r.Use(adminMiddleware)
		r.Post("/admin/grant", h.AdminGrant)
		r.Post("/admin/referral", h.Referral)
	})

	return r
}

// WebhookRoutes returns unauthenticated webhook routes. Trust comes from
// the HMAC signature, not from a session.
func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/card", h.CardWebhook)
	return r
}
