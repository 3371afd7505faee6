package handler

import (
	"context"
	"net/http"
	"time"

	"storytime-api/internal/domain"
)

type mockAuthService struct {
	user      *domain.SupabaseUser
	err       error
	lastToken string
}

func (m *mockAuthService) ValidateToken(token string) (*domain.SupabaseUser, error) {
	m.lastToken = token
	if m.err != nil {
		return nil, m.err
	}
	return m.user, nil
}

type mockEntitlementService struct {
	entitlement *domain.Entitlement
	enabled     bool
	plans       []*domain.SubscriptionPlan
	err         error

	lastUserID  string
	lastToken   string
	lastFeature string
}

func (m *mockEntitlementService) GetEntitlements(ctx context.Context, userID string, token string) (*domain.Entitlement, error) {
	m.lastUserID = userID
	m.lastToken = token
	return m.entitlement, m.err
}

func (m *mockEntitlementService) HasFeature(ctx context.Context, userID, feature string, token string) (bool, error) {
	m.lastUserID = userID
	m.lastFeature = feature
	return m.enabled, m.err
}

func (m *mockEntitlementService) ListPlans(ctx context.Context) ([]*domain.SubscriptionPlan, error) {
	return m.plans, m.err
}

type mockUsageService struct {
	entitlement *domain.Entitlement
	err         error
	resetErr    error

	recordCalls int
	resetUserID string
}

func (m *mockUsageService) RecordStoryGeneration(ctx context.Context, userID string, token string) (*domain.Entitlement, error) {
	m.recordCalls++
	return m.entitlement, m.err
}

func (m *mockUsageService) ResetUsage(ctx context.Context, userID string) error {
	m.resetUserID = userID
	return m.resetErr
}

type mockBillingService struct {
	url        string
	err        error
	webhookErr error

	lastPlanID    string
	lastSignature string
	lastPayload   []byte
}

func (m *mockBillingService) CreateCheckout(ctx context.Context, user *domain.SupabaseUser, planID string, token string) (string, error) {
	m.lastPlanID = planID
	return m.url, m.err
}

func (m *mockBillingService) CreatePortal(ctx context.Context, userID string, token string) (string, error) {
	return m.url, m.err
}

func (m *mockBillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	m.lastPayload = payload
	m.lastSignature = signature
	return m.webhookErr
}

var testUser = &domain.SupabaseUser{
	ID:           "8b0d4a4e-2f4e-4b8a-9d57-4a0f5e7c1a11",
	Email:        "parent@example.com",
	UserMetadata: map[string]interface{}{"full_name": "Ada Parent"},
}

func freeEntitlement(remaining int) *domain.Entitlement {
	return &domain.Entitlement{
		Tier:             domain.TierFree,
		CanGenerateStory: remaining > 0,
		RemainingStories: domain.BoundedQuota(remaining),
		RemainingDays:    domain.UnknownDays(),
		StoryLimit:       1,
		StoriesUsed:      1 - remaining,
		Features:         []string{"basic_stories"},
		EvaluatedAt:      time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
	}
}

// withAuth mimics AuthMiddleware for handler tests.
func withAuth(r *http.Request, user *domain.SupabaseUser, token string) *http.Request {
	ctx := context.WithValue(r.Context(), userContextKey, user)
	ctx = context.WithValue(ctx, tokenContextKey, token)
	return r.WithContext(ctx)
}
