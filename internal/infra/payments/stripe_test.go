package payments

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"storytime-api/internal/domain"
)

const testWebhookSecret = "whsec_test"

func signedPayload(t *testing.T, body string) ([]byte, string) {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(body),
		Secret:  testWebhookSecret,
	})
	return signed.Payload, signed.Header
}

func TestParseEvent_SubscriptionUpdated(t *testing.T) {
	gw := NewStripeGateway("sk_test", testWebhookSecret, "http://localhost:3000")

	payload, sig := signedPayload(t, `{
		"id": "evt_1",
		"object": "event",
		"created": 1790000000,
		"type": "customer.subscription.updated",
		"data": {"object": {
			"id": "sub_1",
			"object": "subscription",
			"customer": "cus_1",
			"status": "active",
			"current_period_end": 1793577600,
			"metadata": {"user_id": "0b7f6b7e-2c1a-4b8e-9c55-6f1f3f1e9a11"},
			"items": {"object": "list", "data": [{"id": "si_1", "price": {"id": "price_basic"}}]}
		}}
	}`)

	event, err := gw.ParseEvent(payload, sig)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if event.Type != domain.BillingEventSubscriptionUpdated {
		t.Fatalf("expected subscription.updated, got %s", event.Type)
	}
	if event.ID != "evt_1" || event.SubscriptionID != "sub_1" || event.CustomerID != "cus_1" {
		t.Fatalf("unexpected identifiers %+v", event)
	}
	if event.PriceID != "price_basic" {
		t.Fatalf("expected price_basic, got %s", event.PriceID)
	}
	if event.UserID != "0b7f6b7e-2c1a-4b8e-9c55-6f1f3f1e9a11" {
		t.Fatalf("expected user id from metadata, got %s", event.UserID)
	}
	want := time.Unix(1793577600, 0).UTC()
	if event.CurrentPeriodEnd == nil || !event.CurrentPeriodEnd.Equal(want) {
		t.Fatalf("expected period end %s, got %v", want, event.CurrentPeriodEnd)
	}
	if created := time.Unix(1790000000, 0).UTC(); !event.Created.Equal(created) {
		t.Fatalf("expected created %s, got %s", created, event.Created)
	}
}

func TestParseEvent_DeletedAndIgnored(t *testing.T) {
	gw := NewStripeGateway("sk_test", testWebhookSecret, "http://localhost:3000")

	payload, sig := signedPayload(t, `{"id":"evt_2","object":"event","type":"customer.subscription.deleted",
		"data":{"object":{"id":"sub_1","object":"subscription","customer":"cus_1","status":"canceled"}}}`)
	event, err := gw.ParseEvent(payload, sig)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if event.Type != domain.BillingEventSubscriptionDeleted || event.Status != "canceled" {
		t.Fatalf("unexpected deleted event %+v", event)
	}

	payload, sig = signedPayload(t, `{"id":"evt_3","object":"event","type":"invoice.paid","data":{"object":{}}}`)
	event, err = gw.ParseEvent(payload, sig)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if event.Type != domain.BillingEventIgnored || event.ProviderType != "invoice.paid" {
		t.Fatalf("expected ignored invoice.paid, got %+v", event)
	}
}

func TestParseEvent_RejectsBadSignature(t *testing.T) {
	gw := NewStripeGateway("sk_test", testWebhookSecret, "http://localhost:3000")

	payload, _ := signedPayload(t, `{"id":"evt_1","object":"event","type":"invoice.paid","data":{"object":{}}}`)
	if _, err := gw.ParseEvent(payload, "t=1,v1=deadbeef"); !errors.Is(err, domain.ErrInvalidWebhook) {
		t.Fatalf("expected ErrInvalidWebhook, got %v", err)
	}

	unconfigured := NewStripeGateway("sk_test", "", "http://localhost:3000")
	if _, err := unconfigured.ParseEvent(payload, "t=1,v1=deadbeef"); !errors.Is(err, domain.ErrBillingNotConfigured) {
		t.Fatalf("expected ErrBillingNotConfigured, got %v", err)
	}
}

func newTestGateway(t *testing.T, handler http.HandlerFunc) *StripeGateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(server.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return NewStripeGatewayWithBackends("sk_test", testWebhookSecret, "https://storytime.example", &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})
}

func TestCreateCheckoutSession(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if got := r.PostForm.Get("line_items[0][price]"); got != "price_basic" {
			t.Errorf("expected price_basic, got %q", got)
		}
		if got := r.PostForm.Get("subscription_data[metadata][user_id]"); got != "user-1" {
			t.Errorf("expected user metadata, got %q", got)
		}
		if got := r.PostForm.Get("customer_email"); got != "parent@example.com" {
			t.Errorf("expected customer email, got %q", got)
		}
		if got := r.PostForm.Get("success_url"); got != "https://storytime.example/billing/success" {
			t.Errorf("unexpected success url %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_1"}`))
	})

	url, err := gw.CreateCheckoutSession(context.Background(), domain.CheckoutRequest{
		UserID:  "user-1",
		Email:   "parent@example.com",
		PlanID:  "plan-basic",
		PriceID: "price_basic",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if url != "https://checkout.stripe.com/c/pay/cs_1" {
		t.Fatalf("unexpected url %s", url)
	}
}

func TestCreateCheckoutSession_RequiresPrice(t *testing.T) {
	gw := NewStripeGateway("sk_test", testWebhookSecret, "https://storytime.example")

	if _, err := gw.CreateCheckoutSession(context.Background(), domain.CheckoutRequest{UserID: "user-1"}); !errors.Is(err, domain.ErrBillingNotConfigured) {
		t.Fatalf("expected ErrBillingNotConfigured, got %v", err)
	}
}

func TestCreatePortalSession(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/billing_portal/sessions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = r.ParseForm()
		if got := r.PostForm.Get("customer"); got != "cus_1" {
			t.Errorf("expected customer cus_1, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"bps_1","object":"billing_portal.session","url":"https://billing.stripe.com/p/session/bps_1"}`))
	})

	url, err := gw.CreatePortalSession(context.Background(), "cus_1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if url != "https://billing.stripe.com/p/session/bps_1" {
		t.Fatalf("unexpected url %s", url)
	}
}

func TestCreatePortalSession_ProviderError(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such customer"}}`))
	})

	if _, err := gw.CreatePortalSession(context.Background(), "cus_missing"); err == nil {
		t.Fatalf("expected provider error")
	}
}
