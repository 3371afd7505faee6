package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"storytime-api/internal/domain"
)

const (
	subscriptionsTable = "subscriptions"
	subscriptionSelect = "*, subscription_plans(*)"
)

// SubscriptionRepository implements the domain.SubscriptionRepository interface
type SubscriptionRepository struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
}

func NewSubscriptionRepository(supabaseClient domain.SupabaseClient, logger domain.Logger) *SubscriptionRepository {
	return &SubscriptionRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

// GetByUserID returns the user's newest subscription with its plan embedded.
func (r *SubscriptionRepository) GetByUserID(ctx context.Context, userID string, token string) (*domain.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Use client with token for RLS policies
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to get client with token: %w", err)
	}

	return latestForUser(client, userID)
}

// GetForBilling is GetByUserID for the webhook, which has no user token.
func (r *SubscriptionRepository) GetForBilling(ctx context.Context, userID string) (*domain.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := r.supabaseClient.Admin()
	if err != nil {
		return nil, err
	}

	return latestForUser(client, userID)
}

// GetByStripeSubscriptionID looks a subscription up with the service-role client.
func (r *SubscriptionRepository) GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := r.supabaseClient.Admin()
	if err != nil {
		return nil, err
	}

	data, _, err := client.From(subscriptionsTable).
		Select(subscriptionSelect, "", false).
		Eq("stripe_subscription_id", stripeSubscriptionID).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription by stripe id: %w", err)
	}

	return firstSubscription(data)
}

// Upsert writes the billing fields of sub keyed on user_id. A nil PlanID is
// written as null, which drops the user back to the free tier.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *domain.Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := r.supabaseClient.Admin()
	if err != nil {
		return err
	}

	data := map[string]interface{}{
		"user_id":                sub.UserID,
		"plan_id":                sub.PlanID,
		"status":                 sub.Status,
		"current_period_end":     sub.CurrentPeriodEnd,
		"stripe_customer_id":     nullIfEmpty(sub.StripeCustomerID),
		"stripe_subscription_id": nullIfEmpty(sub.StripeSubscriptionID),
		"last_event_at":          sub.LastEventAt,
	}

	_, _, err = client.From(subscriptionsTable).
		Upsert(data, "user_id", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}

	r.logger.Info("Subscription upserted",
		"user_id", sub.UserID,
		"status", sub.Status,
		"stripe_subscription_id", sub.StripeSubscriptionID)
	return nil
}

func latestForUser(client *supabase.Client, userID string) (*domain.Subscription, error) {
	data, _, err := client.From(subscriptionsTable).
		Select(subscriptionSelect, "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return firstSubscription(data)
}

func firstSubscription(data []byte) (*domain.Subscription, error) {
	var rows []domain.Subscription
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
