package domain

// Tier is the named subscription level governing feature access and quota.
type Tier string

const (
	TierFree    Tier = "free"
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
)

// DefaultStoryLimit applies when a plan does not specify story_limit.
const DefaultStoryLimit = 1

// SubscriptionPlan is a row of the subscription_plans catalog. When embedded in a
// Subscription it is the plan reference the entitlement rules read.
type SubscriptionPlan struct {
	ID            string   `json:"id,omitempty"`
	Name          string   `json:"name,omitempty"`
	Tier          Tier     `json:"tier,omitempty"`
	PriceCents    int64    `json:"price_cents,omitempty"`
	StoryLimit    *int     `json:"story_limit,omitempty"`
	Features      []string `json:"features,omitempty"`
	StripePriceID string   `json:"stripe_price_id,omitempty"`
}

// EffectiveStoryLimit returns story_limit, or DefaultStoryLimit when the plan
// (or its limit) is absent.
func (p *SubscriptionPlan) EffectiveStoryLimit() int {
	if p == nil || p.StoryLimit == nil {
		return DefaultStoryLimit
	}
	return *p.StoryLimit
}

// Subscription is the billing record for a user. It is written by the billing
// webhook only; entitlement checks read it.
type Subscription struct {
	ID                   string            `json:"id,omitempty"`
	UserID               string            `json:"user_id"`
	PlanID               *string           `json:"plan_id,omitempty"`
	Status               string            `json:"status,omitempty"`
	Plan                 *SubscriptionPlan `json:"subscription_plans,omitempty"`
	CurrentPeriodEnd     *string           `json:"current_period_end,omitempty"`
	StripeCustomerID     string            `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string            `json:"stripe_subscription_id,omitempty"`
	// LastEventAt is the creation time of the billing event last applied.
	LastEventAt *string `json:"last_event_at,omitempty"`
}

// Usage counts story generations in the current quota window.
// ResetDate marks the start of the window; nil means no window has started.
type Usage struct {
	UserID     string  `json:"user_id"`
	StoryCount int     `json:"story_count"`
	ResetDate  *string `json:"reset_date,omitempty"`
}
