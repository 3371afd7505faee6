package domain

import "errors"

// Domain errors
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrInvalidToken          = errors.New("invalid token")
	ErrSubscriptionNotFound  = errors.New("subscription not found")
	ErrPlanNotFound          = errors.New("plan not found")
	ErrPlanNotPurchasable    = errors.New("plan cannot be purchased")
	ErrStoryLimitReached     = errors.New("story limit reached")
	ErrUsageConflict         = errors.New("usage was modified concurrently")
	ErrBillingNotConfigured  = errors.New("billing not configured")
	ErrInvalidWebhook        = errors.New("invalid webhook event")
	ErrSupabaseNotConfigured = errors.New("supabase client not initialized")
)

// ValidationError represents a validation error with field and message information.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}
