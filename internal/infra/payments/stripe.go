// Package payments adapts Stripe to domain.PaymentGateway.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"storytime-api/internal/domain"
)

// Metadata keys written on Stripe subscriptions created through checkout.
const (
	MetadataUserID = "user_id"
	MetadataPlanID = "plan_id"
)

// StripeGateway implements domain.PaymentGateway
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	frontendURL   string
}

// NewStripeGateway creates a gateway using the live Stripe backends.
func NewStripeGateway(secretKey, webhookSecret, frontendURL string) *StripeGateway {
	return NewStripeGatewayWithBackends(secretKey, webhookSecret, frontendURL, nil)
}

// NewStripeGatewayWithBackends lets callers point the API client elsewhere.
func NewStripeGatewayWithBackends(secretKey, webhookSecret, frontendURL string, backends *stripe.Backends) *StripeGateway {
	return &StripeGateway{
		api:           client.New(secretKey, backends),
		webhookSecret: webhookSecret,
		frontendURL:   frontendURL,
	}
}

// CreateCheckoutSession starts a subscription checkout and returns its URL.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (string, error) {
	if req.PriceID == "" {
		return "", domain.ErrBillingNotConfigured
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(req.UserID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				MetadataUserID: req.UserID,
				MetadataPlanID: req.PlanID,
			},
		},
		SuccessURL: stripe.String(g.frontendURL + "/billing/success"),
		CancelURL:  stripe.String(g.frontendURL + "/billing/cancel"),
	}
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	} else if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreatePortalSession opens the customer portal for an existing customer.
func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(g.frontendURL + "/settings/billing"),
	}
	params.Context = ctx

	sess, err := g.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return sess.URL, nil
}

// ParseEvent verifies the Stripe-Signature header and reduces subscription
// lifecycle events to a BillingEvent. Other event types come back as ignored.
func (g *StripeGateway) ParseEvent(payload []byte, signature string) (*domain.BillingEvent, error) {
	if g.webhookSecret == "" {
		return nil, domain.ErrBillingNotConfigured
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		signature,
		g.webhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidWebhook, err)
	}

	out := &domain.BillingEvent{
		ID:           event.ID,
		Type:         domain.BillingEventIgnored,
		ProviderType: string(event.Type),
	}
	if event.Created > 0 {
		out.Created = time.Unix(event.Created, 0).UTC()
	}

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		out.Type = domain.BillingEventSubscriptionUpdated
	case "customer.subscription.deleted":
		out.Type = domain.BillingEventSubscriptionDeleted
	default:
		return out, nil
	}

	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("%w: subscription payload: %v", domain.ErrInvalidWebhook, err)
	}

	out.SubscriptionID = sub.ID
	out.Status = string(sub.Status)
	out.UserID = sub.Metadata[MetadataUserID]
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		out.PriceID = sub.Items.Data[0].Price.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		out.CurrentPeriodEnd = &end
	}
	return out, nil
}
