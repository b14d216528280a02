package payment

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/pixelforge/pixelforge-api/internal/middleware"
	"github.com/pixelforge/pixelforge-api/internal/pkg/cardproc"
	"github.com/pixelforge/pixelforge-api/internal/pkg/errorhandler"
	"github.com/pixelforge/pixelforge-api/internal/pkg/pricing"
	"github.com/pixelforge/pixelforge-api/internal/pkg/response"
	"github.com/pixelforge/pixelforge-api/internal/pkg/validator"
)

// Handler handles payment HTTP requests
type Handler struct {
	service       *Service
	webhookSecret string
}

// NewHandler creates payment handler
func NewHandler(service *Service, webhookSecret string) *Handler {
	return &Handler{service: service, webhookSecret: webhookSecret}
}

// ConfirmChain handles POST /payments/chain/confirm
func (h *Handler) ConfirmChain(w http.ResponseWriter, r *http.Request) {
	key, ok := middleware.IdentityKeyFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "missing identity")
		return
	}

	var req ConfirmChainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	result, err := h.service.ConfirmChainPayment(r.Context(), key, req.ExpectedAmount)
	if err != nil {
		h.writeApplyError(w, r, err)
		return
	}

	response.OK(w, result)
}

// ConfirmCard handles POST /payments/card/confirm
func (h *Handler) ConfirmCard(w http.ResponseWriter, r *http.Request) {
	key, ok := middleware.IdentityKeyFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "missing identity")
		return
	}

	var req ConfirmCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	result, err := h.service.ConfirmCardPayment(r.Context(), key, req.ChargeID)
	if err != nil {
		h.writeApplyError(w, r, err)
		return
	}

	response.OK(w, result)
}

// CardWebhook handles POST /webhooks/card. Unauthenticated; trust comes from
// the HMAC signature over the raw body.
func (h *Handler) CardWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		response.BadRequest(w, "Unreadable body")
		return
	}

	if !cardproc.VerifySignature(body, r.Header.Get("X-Webhook-Signature"), h.webhookSecret) {
		log.Warn().Str("ip", r.RemoteAddr).Msg("card webhook with bad signature rejected")
		response.Unauthorized(w, "Invalid signature")
		return
	}

	ev, err := cardproc.ParseWebhook(body)
	if err != nil {
		response.BadRequest(w, "Invalid webhook payload")
		return
	}

	result, err := h.service.ApplyCardWebhook(r.Context(), ev)
	if err != nil {
		// A non-succeeded status is acknowledged so the processor stops
		// retrying; everything else is our problem.
		if errors.Is(err, ErrChargeNotConfirmed) || errors.Is(err, ErrInvalidInput) {
			response.OK(w, map[string]string{"status": "ignored"})
			return
		}
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "WEBHOOK_ERROR", "failed to apply webhook", err)
		return
	}

	response.OK(w, result)
}

// AdminGrant handles POST /admin/credits/grant
func (h *Handler) AdminGrant(w http.ResponseWriter, r *http.Request) {
	var req AdminGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	result, err := h.service.ApplyAdminGrant(r.Context(), req.IdentityKey, req.GrantID, req.Credits, req.Note)
	if err != nil {
		h.writeApplyError(w, r, err)
		return
	}

	response.OK(w, result)
}

// Referral handles POST /admin/credits/referral
func (h *Handler) Referral(w http.ResponseWriter, r *http.Request) {
	var req ReferralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	result, err := h.service.ApplyReferralBonus(r.Context(), req.ReferrerKey, req.RefereeKey, req.Credits)
	if err != nil {
		h.writeApplyError(w, r, err)
		return
	}

	response.OK(w, result)
}

// writeApplyError maps reconciliation errors to stable client-facing kinds.
// No provider identifiers or internals leak out.
func (h *Handler) writeApplyError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNoMatch):
		// Not terminal: the client keeps polling while the transfer confirms.
		response.JSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
	case errors.Is(err, ErrInvalidInput), errors.Is(err, pricing.ErrInvalidAmount), errors.Is(err, pricing.ErrImplausibleAmount):
		response.BadRequest(w, "Invalid payment request")
	case errors.Is(err, ErrChargeNotConfirmed):
		response.Error(w, http.StatusConflict, "CHARGE_NOT_CONFIRMED", "Charge is not confirmed by the processor")
	case errors.Is(err, ErrAllChainsFailed), errors.Is(err, cardproc.ErrUnavailable):
		response.Error(w, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Payment providers are temporarily unavailable")
	case errors.Is(err, cardproc.ErrChargeNotFound):
		response.NotFound(w, "Charge not found")
	default:
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "PAYMENT_ERROR", "failed to apply payment", err)
	}
}
