package domain

import "time"

// BillingEventType is the normalized kind of a payment provider event.
type BillingEventType string

const (
	BillingEventSubscriptionUpdated BillingEventType = "subscription.updated"
	BillingEventSubscriptionDeleted BillingEventType = "subscription.deleted"
	BillingEventIgnored             BillingEventType = "ignored"
)

// BillingEvent is a verified payment provider event reduced to the fields the
// subscription record needs.
type BillingEvent struct {
	ID               string
	Type             BillingEventType
	ProviderType     string
	UserID           string
	CustomerID       string
	SubscriptionID   string
	PriceID          string
	Status           string
	CurrentPeriodEnd *time.Time
	// Created is when the provider generated the event. Deliveries are not
	// ordered, so it decides which of two events for a user is newer.
	Created time.Time
}

// CheckoutRequest describes a hosted checkout for a paid plan. CustomerID is
// set when the user already has a billing customer.
type CheckoutRequest struct {
	UserID     string
	Email      string
	CustomerID string
	PlanID     string
	PriceID    string
}
