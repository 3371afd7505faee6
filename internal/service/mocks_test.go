package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/supabase-community/supabase-go"

	"storytime-api/internal/clock"
	"storytime-api/internal/domain"
	"storytime-api/internal/entitlement"
)

var testNow = time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC)

const testUserID = "0b7f6b7e-2c1a-4b8e-9c55-6f1f3f1e9a11"

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func newTestEvaluator() (*entitlement.Evaluator, *clock.FakeClock) {
	fake := clock.NewFakeClock(testNow)
	return entitlement.NewEvaluator(fake), fake
}

// MockLogger records messages
type MockLogger struct {
	mu       sync.Mutex
	messages []string
}

func NewMockLogger() *MockLogger {
	return &MockLogger{messages: []string{}}
}

func (m *MockLogger) add(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, s)
}

func (m *MockLogger) Info(msg string, args ...interface{})  { m.add("INFO: " + msg) }
func (m *MockLogger) Debug(msg string, args ...interface{}) { m.add("DEBUG: " + msg) }
func (m *MockLogger) Warn(msg string, args ...interface{})  { m.add("WARN: " + msg) }

func (m *MockLogger) Error(msg string, err error, args ...interface{}) {
	m.add("ERROR: " + msg + " - " + err.Error())
}

// MockSupabaseClient for testing
type MockSupabaseClient struct {
	mu    sync.Mutex
	calls int
}

func NewMockSupabaseClient() *MockSupabaseClient {
	return &MockSupabaseClient{}
}

func (m *MockSupabaseClient) Initialize() error { return nil }

func (m *MockSupabaseClient) ValidateToken(token string) (*domain.SupabaseUser, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if token == "valid-token" || strings.Count(token, ".") == 2 {
		return &domain.SupabaseUser{ID: "user-123", Email: "test@example.com"}, nil
	}
	return nil, domain.ErrInvalidToken
}

func (m *MockSupabaseClient) DB() *supabase.Client { return nil }

func (m *MockSupabaseClient) Admin() (*supabase.Client, error) { return nil, nil }

func (m *MockSupabaseClient) GetClientWithToken(token string) (*supabase.Client, error) {
	return nil, nil
}

// mockSubscriptionRepo keeps subscriptions by user id.
type mockSubscriptionRepo struct {
	mu       sync.Mutex
	subs     map[string]*domain.Subscription
	upserted []*domain.Subscription
	err      error
}

func newMockSubscriptionRepo() *mockSubscriptionRepo {
	return &mockSubscriptionRepo{subs: map[string]*domain.Subscription{}}
}

func (m *mockSubscriptionRepo) GetByUserID(ctx context.Context, userID string, token string) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.subs[userID], nil
}

func (m *mockSubscriptionRepo) GetByStripeSubscriptionID(ctx context.Context, id string) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs {
		if sub.StripeSubscriptionID == id {
			return sub, nil
		}
	}
	return nil, nil
}

func (m *mockSubscriptionRepo) GetForBilling(ctx context.Context, userID string) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.subs[userID], nil
}

func (m *mockSubscriptionRepo) Upsert(ctx context.Context, sub *domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.upserted = append(m.upserted, sub)
	m.subs[sub.UserID] = sub
	return nil
}

// mockUsageRepo is an in-memory usage table with compare-and-swap semantics.
type mockUsageRepo struct {
	mu        sync.Mutex
	rows      map[string]domain.Usage
	getErr    error
	casCalls  int
	resets    map[string]string
	beforeCAS func(m *mockUsageRepo)
	onCreate  func(m *mockUsageRepo)
}

func newMockUsageRepo() *mockUsageRepo {
	return &mockUsageRepo{rows: map[string]domain.Usage{}, resets: map[string]string{}}
}

func (m *mockUsageRepo) put(u domain.Usage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[u.UserID] = u
}

func (m *mockUsageRepo) get(userID string) (domain.Usage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[userID]
	return u, ok
}

func (m *mockUsageRepo) GetByUserID(ctx context.Context, userID string, token string) (*domain.Usage, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	u, ok := m.get(userID)
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *mockUsageRepo) Create(ctx context.Context, usage *domain.Usage, token string) (bool, error) {
	if m.onCreate != nil {
		m.onCreate(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rows[usage.UserID]; exists {
		return false, nil
	}
	m.rows[usage.UserID] = *usage
	return true, nil
}

func (m *mockUsageRepo) CompareAndSwap(ctx context.Context, expected, next *domain.Usage, token string) (bool, error) {
	if m.beforeCAS != nil {
		m.beforeCAS(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.casCalls++
	current, ok := m.rows[expected.UserID]
	if !ok || current.StoryCount != expected.StoryCount || !sameTimestamp(current.ResetDate, expected.ResetDate) {
		return false, nil
	}
	m.rows[expected.UserID] = *next
	return true, nil
}

func (m *mockUsageRepo) Reset(ctx context.Context, userID string, resetDate string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets[userID] = resetDate
	m.rows[userID] = domain.Usage{UserID: userID, StoryCount: 0, ResetDate: &resetDate}
	return nil
}

func sameTimestamp(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

type mockPlanRepo struct {
	plans []*domain.SubscriptionPlan
	err   error
}

func (m *mockPlanRepo) List(ctx context.Context) ([]*domain.SubscriptionPlan, error) {
	return m.plans, m.err
}

func (m *mockPlanRepo) GetByID(ctx context.Context, id string) (*domain.SubscriptionPlan, error) {
	for _, p := range m.plans {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, domain.ErrPlanNotFound
}

func (m *mockPlanRepo) GetByStripePriceID(ctx context.Context, priceID string) (*domain.SubscriptionPlan, error) {
	for _, p := range m.plans {
		if priceID != "" && p.StripePriceID == priceID {
			return p, nil
		}
	}
	return nil, domain.ErrPlanNotFound
}

func testPlans() *mockPlanRepo {
	return &mockPlanRepo{plans: []*domain.SubscriptionPlan{
		{ID: "plan-free", Tier: domain.TierFree, StoryLimit: intPtr(1)},
		{ID: "plan-basic", Tier: domain.TierBasic, StoryLimit: intPtr(20), Features: []string{"audio"}, StripePriceID: "price_basic"},
		{ID: "plan-premium", Tier: domain.TierPremium, Features: []string{"audio", "illustrations"}, StripePriceID: "price_premium"},
	}}
}

type mockGateway struct {
	event       *domain.BillingEvent
	parseErr    error
	checkoutReq *domain.CheckoutRequest
	portalFor   string
}

func (m *mockGateway) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (string, error) {
	m.checkoutReq = &req
	return "https://checkout.example/" + req.PriceID, nil
}

func (m *mockGateway) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	m.portalFor = customerID
	return "https://portal.example/" + customerID, nil
}

func (m *mockGateway) ParseEvent(payload []byte, signature string) (*domain.BillingEvent, error) {
	if m.parseErr != nil {
		return nil, m.parseErr
	}
	return m.event, nil
}

type mockDedup struct {
	seen      map[string]bool
	forgotten []string
	err       error
}

func newMockDedup() *mockDedup {
	return &mockDedup{seen: map[string]bool{}}
}

func (m *mockDedup) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.seen[eventID] {
		return false, nil
	}
	m.seen[eventID] = true
	return true, nil
}

func (m *mockDedup) Forget(ctx context.Context, eventID string) error {
	delete(m.seen, eventID)
	m.forgotten = append(m.forgotten, eventID)
	return nil
}

var errStore = errors.New("store unavailable")
