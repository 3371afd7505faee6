package handler

import (
	"encoding/json"
	"net/http"

	"storytime-api/internal/domain"
	apperrors "storytime-api/pkg/errors"
)

type contextKey string

const (
	userContextKey  contextKey = "user"
	tokenContextKey contextKey = "token"
)

// GetUserFromContext extracts the authenticated user from request context
func GetUserFromContext(r *http.Request) (*domain.SupabaseUser, bool) {
	user, ok := r.Context().Value(userContextKey).(*domain.SupabaseUser)
	return user, ok
}

// GetTokenFromContext extracts the authentication token from request context
func GetTokenFromContext(r *http.Request) (string, bool) {
	token, ok := r.Context().Value(tokenContextKey).(string)
	return token, ok
}

func writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError writes an error response (helper function)
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeAppError maps err to its status and public message. Server-side
// failures are logged; their details never reach the client.
func writeAppError(w http.ResponseWriter, logger domain.Logger, err error, fields ...interface{}) {
	appErr := apperrors.FromDomain(err)
	status := apperrors.GetStatusCode(appErr)
	if status >= http.StatusInternalServerError {
		logger.Error(appErr.Message, err, fields...)
	}
	writeError(w, status, appErr.Message)
}
