package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/gorilla/mux"

	"storytime-api/internal/domain"
)

// AdminHandler exposes support endpoints protected by X-Admin-Secret.
// They are meant for internal tooling and are disabled when no secret is set.
type AdminHandler struct {
	usage  domain.UsageService
	secret string
	logger domain.Logger
}

func NewAdminHandler(usage domain.UsageService, secret string, logger domain.Logger) *AdminHandler {
	return &AdminHandler{
		usage:  usage,
		secret: secret,
		logger: logger,
	}
}

// ResetUsage restores a user's full story quota starting now.
func (h *AdminHandler) ResetUsage(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get("X-Admin-Secret")
	if h.secret == "" || secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(h.secret)) != 1 {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	userID := mux.Vars(r)["id"]
	if userID == "" {
		writeError(w, http.StatusBadRequest, "User id is required")
		return
	}

	if err := h.usage.ResetUsage(r.Context(), userID); err != nil {
		writeAppError(w, h.logger, err, "user_id", userID)
		return
	}

	h.logger.Info("Usage reset by admin", "user_id", userID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
