package handler

import (
	"net/http"

	"storytime-api/internal/domain"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	logger domain.Logger
}

type profileResponse struct {
	*domain.SupabaseUser
	DisplayName string `json:"display_name"`
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(logger domain.Logger) *AuthHandler {
	return &AuthHandler{logger: logger}
}

// GetProfile returns the current user's profile information
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{SupabaseUser: user, DisplayName: user.DisplayName()})
}
