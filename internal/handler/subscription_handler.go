package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"storytime-api/internal/domain"
)

// SubscriptionHandler serves entitlement reads and the plan catalog.
type SubscriptionHandler struct {
	entitlements domain.EntitlementService
	logger       domain.Logger
}

func NewSubscriptionHandler(entitlements domain.EntitlementService, logger domain.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		entitlements: entitlements,
		logger:       logger,
	}
}

// GetSubscription returns the caller's entitlement snapshot.
func (h *SubscriptionHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	token, _ := GetTokenFromContext(r)

	e, err := h.entitlements.GetEntitlements(r.Context(), user.ID, token)
	if err != nil {
		writeAppError(w, h.logger, err, "user_id", user.ID)
		return
	}

	writeJSON(w, http.StatusOK, e)
}

func (h *SubscriptionHandler) GetFeature(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	token, _ := GetTokenFromContext(r)

	feature := mux.Vars(r)["feature"]
	if feature == "" {
		writeError(w, http.StatusBadRequest, "Feature is required")
		return
	}

	enabled, err := h.entitlements.HasFeature(r.Context(), user.ID, feature, token)
	if err != nil {
		writeAppError(w, h.logger, err, "user_id", user.ID, "feature", feature)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"feature": feature,
		"enabled": enabled,
	})
}

// ListPlans is public.
func (h *SubscriptionHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.entitlements.ListPlans(r.Context())
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"plans": plans})
}
