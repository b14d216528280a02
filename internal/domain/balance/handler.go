package balance

import (
	"net/http"
	"strconv"

	"github.com/pixelforge/pixelforge-api/internal/middleware"
	"github.com/pixelforge/pixelforge-api/internal/pkg/errorhandler"
	"github.com/pixelforge/pixelforge-api/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GetBalance returns the caller's current credit position.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	key, ok := middleware.IdentityKeyFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "missing identity")
		return
	}

	b, err := h.svc.GetBalance(r.Context(), key)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "BALANCE_ERROR", "failed to load balance", err)
		return
	}

	response.OK(w, map[string]interface{}{
		"identity_key": b.IdentityKey,
		"credits":      b.Credits,
		"total_earned": b.TotalEarned,
		"total_spent":  b.TotalSpent,
	})
}

// History returns the caller's payment events, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	key, ok := middleware.IdentityKeyFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "missing identity")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	events, err := h.svc.History(r.Context(), key, limit, offset)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "BALANCE_ERROR", "failed to load history", err)
		return
	}

	response.OK(w, events)
}
