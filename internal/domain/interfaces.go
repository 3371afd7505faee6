package domain

import (
	"context"
	"time"
)

// SubscriptionRepository reads and writes subscription records.
type SubscriptionRepository interface {
	// GetByUserID returns the user's subscription joined with its plan, or nil when none exists.
	GetByUserID(ctx context.Context, userID string, token string) (*Subscription, error)
	GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*Subscription, error)
	// GetForBilling reads the user's subscription with the service-role client.
	GetForBilling(ctx context.Context, userID string) (*Subscription, error)
	Upsert(ctx context.Context, sub *Subscription) error
}

// UsageRepository persists story usage counters.
type UsageRepository interface {
	// GetByUserID returns nil when no generation has been recorded.
	GetByUserID(ctx context.Context, userID string, token string) (*Usage, error)
	// Create inserts the first usage row. It reports false when a row already exists.
	Create(ctx context.Context, usage *Usage, token string) (bool, error)
	// CompareAndSwap replaces expected with next only if the stored row still
	// matches expected. It reports whether the write happened.
	CompareAndSwap(ctx context.Context, expected, next *Usage, token string) (bool, error)
	// Reset zeroes the counter and starts a new window at resetDate.
	Reset(ctx context.Context, userID string, resetDate string) error
}

// PlanRepository reads the public plan catalog.
type PlanRepository interface {
	List(ctx context.Context) ([]*SubscriptionPlan, error)
	GetByID(ctx context.Context, id string) (*SubscriptionPlan, error)
	GetByStripePriceID(ctx context.Context, priceID string) (*SubscriptionPlan, error)
}

type EntitlementService interface {
	GetEntitlements(ctx context.Context, userID string, token string) (*Entitlement, error)
	HasFeature(ctx context.Context, userID, feature string, token string) (bool, error)
	ListPlans(ctx context.Context) ([]*SubscriptionPlan, error)
}

type UsageService interface {
	// RecordStoryGeneration consumes one generation. When the quota is
	// exhausted it returns the current entitlement with ErrStoryLimitReached.
	RecordStoryGeneration(ctx context.Context, userID string, token string) (*Entitlement, error)
	// ResetUsage is a support operation that restores a user's full quota.
	ResetUsage(ctx context.Context, userID string) error
}

type BillingService interface {
	CreateCheckout(ctx context.Context, user *SupabaseUser, planID string, token string) (string, error)
	CreatePortal(ctx context.Context, userID string, token string) (string, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// PaymentGateway is the hosted billing provider.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error)
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
	ParseEvent(payload []byte, signature string) (*BillingEvent, error)
}

// EventDeduplicator remembers processed webhook event IDs.
type EventDeduplicator interface {
	// MarkProcessed reports true the first time an event ID is seen.
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// Config defines the interface for configuration management
type Config interface {
	GetServerPort() string
	GetLogLevel() string
	GetSupabaseURL() string
	GetSupabaseKey() string
	GetSupabaseServiceKey() string
	GetSupabaseJWTSecret() string
	GetStripeSecretKey() string
	GetStripeWebhookSecret() string
	GetFrontendURL() string
	GetAllowedOrigins() []string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetWebhookDedupTTL() time.Duration
	GetAdminSecret() string
}
