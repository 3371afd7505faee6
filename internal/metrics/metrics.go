package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storytime-api/internal/domain"
)

// Story generation outcomes.
const (
	OutcomeRecorded = "recorded"
	OutcomeRefused  = "refused"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Webhook outcomes.
const (
	WebhookProcessed = "processed"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
	WebhookFailed    = "failed"
	WebhookStale     = "stale"
)

// Metrics holds the service counters. A nil *Metrics records nothing.
type Metrics struct {
	gatherer       prometheus.Gatherer
	storyDecisions *prometheus.CounterVec
	storyWrites    *prometheus.CounterVec
	webhookEvents  *prometheus.CounterVec
}

// New registers the counters on registry. A nil registry gets a fresh one.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		gatherer: registry,
		storyDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storytime_story_decisions_total",
			Help: "Entitlement evaluations by tier and whether a story may be generated.",
		}, []string{"tier", "allowed"}),
		storyWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storytime_story_generations_total",
			Help: "Story generation recordings by outcome.",
		}, []string{"outcome"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storytime_billing_webhook_events_total",
			Help: "Billing webhook events by provider type and outcome.",
		}, []string{"type", "outcome"}),
	}
	registry.MustRegister(m.storyDecisions, m.storyWrites, m.webhookEvents)
	return m
}

func (m *Metrics) ObserveDecision(e domain.Entitlement) {
	if m == nil {
		return
	}
	m.storyDecisions.WithLabelValues(string(e.Tier), strconv.FormatBool(e.CanGenerateStory)).Inc()
}

func (m *Metrics) ObserveGeneration(outcome string) {
	if m == nil {
		return
	}
	m.storyWrites.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveWebhook(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
