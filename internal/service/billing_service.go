package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"storytime-api/internal/domain"
	"storytime-api/internal/entitlement"
	"storytime-api/internal/metrics"
)

// Provider statuses under which the paid plan stays in force. past_due keeps
// access while the provider retries the charge.
var entitledStatuses = map[string]bool{
	"active":   true,
	"trialing": true,
	"past_due": true,
}

type billingService struct {
	gateway       domain.PaymentGateway
	plans         domain.PlanRepository
	subscriptions domain.SubscriptionRepository
	dedup         domain.EventDeduplicator
	metrics       *metrics.Metrics
	logger        domain.Logger
}

// NewBillingService wires the billing flows. gateway and dedup may be nil:
// without a gateway every call returns domain.ErrBillingNotConfigured, and
// without dedup redelivered events are applied again.
func NewBillingService(
	gateway domain.PaymentGateway,
	plans domain.PlanRepository,
	subscriptions domain.SubscriptionRepository,
	dedup domain.EventDeduplicator,
	m *metrics.Metrics,
	logger domain.Logger,
) *billingService {
	return &billingService{
		gateway:       gateway,
		plans:         plans,
		subscriptions: subscriptions,
		dedup:         dedup,
		metrics:       m,
		logger:        logger,
	}
}

func (s *billingService) CreateCheckout(ctx context.Context, user *domain.SupabaseUser, planID string, token string) (string, error) {
	if s.gateway == nil {
		return "", domain.ErrBillingNotConfigured
	}
	if planID == "" {
		return "", &domain.ValidationError{Field: "plan_id", Message: "is required"}
	}

	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return "", err
	}
	if plan.Tier == domain.TierFree || plan.Tier == "" || plan.StripePriceID == "" {
		return "", domain.ErrPlanNotPurchasable
	}

	req := domain.CheckoutRequest{
		UserID:  user.ID,
		Email:   user.Email,
		PlanID:  plan.ID,
		PriceID: plan.StripePriceID,
	}

	// Reuse the customer from an earlier subscription so the portal shows one history.
	existing, err := s.subscriptions.GetByUserID(ctx, user.ID, token)
	if err != nil {
		return "", err
	}
	if existing != nil {
		req.CustomerID = existing.StripeCustomerID
	}

	url, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		s.logger.Error("Failed to create checkout session", err, "user_id", user.ID, "plan_id", plan.ID)
		return "", err
	}

	s.logger.Info("Checkout session created", "user_id", user.ID, "plan_id", plan.ID)
	return url, nil
}

func (s *billingService) CreatePortal(ctx context.Context, userID string, token string) (string, error) {
	if s.gateway == nil {
		return "", domain.ErrBillingNotConfigured
	}

	sub, err := s.subscriptions.GetByUserID(ctx, userID, token)
	if err != nil {
		return "", err
	}
	if sub == nil || sub.StripeCustomerID == "" {
		return "", domain.ErrSubscriptionNotFound
	}

	url, err := s.gateway.CreatePortalSession(ctx, sub.StripeCustomerID)
	if err != nil {
		s.logger.Error("Failed to create portal session", err, "user_id", userID)
		return "", err
	}
	return url, nil
}

// HandleWebhook verifies a provider event and applies it to the subscription
// record. Events already applied are acknowledged without side effects.
func (s *billingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.gateway == nil {
		return domain.ErrBillingNotConfigured
	}

	event, err := s.gateway.ParseEvent(payload, signature)
	if err != nil {
		s.metrics.ObserveWebhook("unverified", metrics.WebhookFailed)
		s.logger.Warn("Rejected billing webhook", "error", err.Error())
		return err
	}

	if event.Type == domain.BillingEventIgnored {
		s.metrics.ObserveWebhook(event.ProviderType, metrics.WebhookIgnored)
		s.logger.Debug("Ignoring billing event", "event_id", event.ID, "type", event.ProviderType)
		return nil
	}

	if s.dedup != nil {
		first, err := s.dedup.MarkProcessed(ctx, event.ID)
		if err != nil {
			s.logger.Warn("Webhook dedup unavailable, applying event", "event_id", event.ID, "error", err.Error())
		} else if !first {
			s.metrics.ObserveWebhook(event.ProviderType, metrics.WebhookDuplicate)
			s.logger.Info("Duplicate billing event", "event_id", event.ID)
			return nil
		}
	}

	applied, err := s.apply(ctx, event)
	if err != nil {
		if s.dedup != nil {
			if ferr := s.dedup.Forget(ctx, event.ID); ferr != nil {
				s.logger.Warn("Failed to clear webhook marker", "event_id", event.ID, "error", ferr.Error())
			}
		}
		s.metrics.ObserveWebhook(event.ProviderType, metrics.WebhookFailed)
		s.logger.Error("Failed to apply billing event", err, "event_id", event.ID, "type", event.ProviderType)
		return err
	}

	if !applied {
		s.metrics.ObserveWebhook(event.ProviderType, metrics.WebhookStale)
		return nil
	}

	s.metrics.ObserveWebhook(event.ProviderType, metrics.WebhookProcessed)
	return nil
}

// apply writes event to the user's subscription. It reports false, without
// writing, when a newer event has already been applied.
func (s *billingService) apply(ctx context.Context, event *domain.BillingEvent) (bool, error) {
	userID, err := s.resolveUser(ctx, event)
	if err != nil {
		return false, err
	}

	existing, err := s.subscriptions.GetForBilling(ctx, userID)
	if err != nil {
		return false, err
	}
	if staleEvent(event, existing) {
		s.logger.Info("Skipping out-of-order billing event",
			"event_id", event.ID,
			"user_id", userID,
			"created", event.Created,
			"last_event_at", *existing.LastEventAt)
		return false, nil
	}

	sub := &domain.Subscription{
		UserID:               userID,
		Status:               event.Status,
		StripeCustomerID:     event.CustomerID,
		StripeSubscriptionID: event.SubscriptionID,
	}
	if event.CurrentPeriodEnd != nil {
		end := entitlement.FormatTimestamp(*event.CurrentPeriodEnd)
		sub.CurrentPeriodEnd = &end
	}
	if !event.Created.IsZero() {
		at := entitlement.FormatTimestamp(event.Created)
		sub.LastEventAt = &at
	} else if existing != nil {
		sub.LastEventAt = existing.LastEventAt
	}

	switch event.Type {
	case domain.BillingEventSubscriptionUpdated:
		if entitledStatuses[event.Status] {
			plan, err := s.plans.GetByStripePriceID(ctx, event.PriceID)
			if err != nil {
				return false, fmt.Errorf("price %q: %w", event.PriceID, err)
			}
			sub.PlanID = &plan.ID
		}
	case domain.BillingEventSubscriptionDeleted:
		if sub.Status == "" {
			sub.Status = "canceled"
		}
	}

	if err := s.subscriptions.Upsert(ctx, sub); err != nil {
		return false, err
	}

	plan := "free"
	if sub.PlanID != nil {
		plan = *sub.PlanID
	}
	s.logger.Info("Subscription updated from billing event",
		"event_id", event.ID,
		"user_id", userID,
		"plan_id", plan,
		"status", sub.Status)
	return true, nil
}

// staleEvent reports whether a newer event has already been applied to
// existing. At equal times a cancellation wins over an update.
func staleEvent(event *domain.BillingEvent, existing *domain.Subscription) bool {
	if existing == nil || existing.LastEventAt == nil || event.Created.IsZero() {
		return false
	}
	last, ok := entitlement.ParseTimestamp(*existing.LastEventAt)
	if !ok {
		return false
	}
	if event.Created.Before(last) {
		return true
	}
	return event.Created.Equal(last) &&
		event.Type == domain.BillingEventSubscriptionUpdated &&
		existing.PlanID == nil &&
		existing.Status == "canceled"
}

// resolveUser takes the user from event metadata, falling back to the stored
// subscription with the same provider id.
func (s *billingService) resolveUser(ctx context.Context, event *domain.BillingEvent) (string, error) {
	userID := event.UserID
	if userID == "" && event.SubscriptionID != "" {
		existing, err := s.subscriptions.GetByStripeSubscriptionID(ctx, event.SubscriptionID)
		if err != nil {
			return "", err
		}
		if existing != nil {
			userID = existing.UserID
		}
	}
	if userID == "" {
		return "", fmt.Errorf("%w: no user for subscription %q", domain.ErrInvalidWebhook, event.SubscriptionID)
	}
	if _, err := uuid.Parse(userID); err != nil {
		return "", fmt.Errorf("%w: user id %q", domain.ErrInvalidWebhook, userID)
	}
	return userID, nil
}
