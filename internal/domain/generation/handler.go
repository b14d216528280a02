package generation

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pixelforge/pixelforge-api/internal/domain/abuse"
	"github.com/pixelforge/pixelforge-api/internal/domain/gate"
	"github.com/pixelforge/pixelforge-api/internal/middleware"
	"github.com/pixelforge/pixelforge-api/internal/pkg/errorhandler"
	"github.com/pixelforge/pixelforge-api/internal/pkg/genprovider"
	"github.com/pixelforge/pixelforge-api/internal/pkg/response"
	"github.com/pixelforge/pixelforge-api/internal/pkg/validator"
)

// Handler handles generation HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates generation handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Generate handles POST /generate
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	key, ok := middleware.IdentityKeyFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "missing identity")
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	origin := abuse.Origin(r)
	deviceSig := abuse.DeviceSignature(r)

	g, err := h.service.Generate(r.Context(), key, origin, deviceSig, req)
	if err != nil {
		h.writeGenerateError(w, r, err)
		return
	}

	if g.Status == StatusRunning {
		response.JSON(w, http.StatusAccepted, g)
		return
	}
	response.OK(w, g)
}

// Get handles GET /generate/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	key, ok := middleware.IdentityKeyFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "missing identity")
		return
	}

	g, err := h.service.GetGeneration(r.Context(), key, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "Generation not found")
			return
		}
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "GENERATION_ERROR", "failed to get generation", err)
		return
	}

	response.OK(w, g)
}

// List handles GET /generate
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	key, ok := middleware.IdentityKeyFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "missing identity")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.service.ListGenerations(r.Context(), key, limit)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "GENERATION_ERROR", "failed to list generations", err)
		return
	}

	response.OK(w, items)
}

// writeGenerateError maps admission and provider failures to stable
// client-facing kinds.
func (h *Handler) writeGenerateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		response.BadRequest(w, "Invalid generation request")
	case errors.Is(err, ErrDuplicateRequest):
		response.Conflict(w, "Request already accepted")
	case errors.Is(err, gate.ErrInsufficientBalance):
		response.Error(w, http.StatusPaymentRequired, "INSUFFICIENT_CREDITS", "Not enough credits")
	case errors.Is(err, abuse.ErrCooldownActive),
		errors.Is(err, abuse.ErrOriginCapExceeded),
		errors.Is(err, abuse.ErrDeviceCapExceeded):
		response.TooManyRequests(w)
	case errors.Is(err, abuse.ErrAccountTooNew),
		errors.Is(err, abuse.ErrBlockedEmailDomain):
		response.Forbidden(w, "Free tier not available for this account")
	case errors.Is(err, genprovider.ErrUnavailable):
		response.Error(w, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Generation is temporarily unavailable")
	default:
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "GENERATION_ERROR", "failed to run generation", err)
	}
}
