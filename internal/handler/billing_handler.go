package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"storytime-api/internal/domain"
)

const maxWebhookBodyBytes = int64(65536)

// BillingHandler exposes checkout, the customer portal and the provider webhook.
type BillingHandler struct {
	billing domain.BillingService
	logger  domain.Logger
}

type checkoutRequest struct {
	PlanID string `json:"plan_id"`
}

func NewBillingHandler(billing domain.BillingService, logger domain.Logger) *BillingHandler {
	return &BillingHandler{
		billing: billing,
		logger:  logger,
	}
}

func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	token, _ := GetTokenFromContext(r)

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	url, err := h.billing.CreateCheckout(r.Context(), user, req.PlanID, token)
	if err != nil {
		writeAppError(w, h.logger, err, "user_id", user.ID, "plan_id", req.PlanID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *BillingHandler) CreatePortal(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	token, _ := GetTokenFromContext(r)

	url, err := h.billing.CreatePortal(r.Context(), user.ID, token)
	if err != nil {
		writeAppError(w, h.logger, err, "user_id", user.ID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Webhook receives provider events. Anything other than a 2xx makes the
// provider redeliver, so only failures worth retrying return 5xx.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	err = h.billing.HandleWebhook(r.Context(), body, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, domain.ErrInvalidWebhook):
		writeError(w, http.StatusBadRequest, "Invalid webhook event")
	default:
		writeAppError(w, h.logger, err)
	}
}
