package handler

import (
	"errors"
	"net/http"

	"storytime-api/internal/domain"
)

// UsageHandler records story generations against the caller's quota.
type UsageHandler struct {
	usage  domain.UsageService
	logger domain.Logger
}

func NewUsageHandler(usage domain.UsageService, logger domain.Logger) *UsageHandler {
	return &UsageHandler{
		usage:  usage,
		logger: logger,
	}
}

// RecordStory consumes one generation. An exhausted quota answers 402 with the
// current entitlement so the client can show when the window resets.
func (h *UsageHandler) RecordStory(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	token, _ := GetTokenFromContext(r)

	e, err := h.usage.RecordStoryGeneration(r.Context(), user.ID, token)
	if errors.Is(err, domain.ErrStoryLimitReached) {
		writeJSON(w, http.StatusPaymentRequired, map[string]interface{}{
			"error":       "Story limit reached for the current period",
			"entitlement": e,
		})
		return
	}
	if err != nil {
		writeAppError(w, h.logger, err, "user_id", user.ID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"entitlement": e})
}
