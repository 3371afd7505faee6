package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	quotaKindUnlimited = "unlimited"
	quotaKindBounded   = "bounded"
)

// StoryQuota is the remaining number of story generations. Paid tiers are
// unlimited, which is carried as a discriminant instead of a numeric infinity.
type StoryQuota struct {
	Unlimited bool
	Remaining int
}

// UnlimitedQuota returns the sentinel used for unmetered tiers.
func UnlimitedQuota() StoryQuota {
	return StoryQuota{Unlimited: true}
}

// BoundedQuota returns a quota with n generations left.
func BoundedQuota(n int) StoryQuota {
	return StoryQuota{Remaining: n}
}

type storyQuotaJSON struct {
	Kind      string `json:"kind"`
	Remaining *int   `json:"remaining,omitempty"`
}

// MarshalJSON encodes {"kind":"unlimited"} or {"kind":"bounded","remaining":n}.
func (q StoryQuota) MarshalJSON() ([]byte, error) {
	if q.Unlimited {
		return json.Marshal(storyQuotaJSON{Kind: quotaKindUnlimited})
	}
	remaining := q.Remaining
	return json.Marshal(storyQuotaJSON{Kind: quotaKindBounded, Remaining: &remaining})
}

func (q *StoryQuota) UnmarshalJSON(data []byte) error {
	var raw storyQuotaJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case quotaKindUnlimited:
		*q = UnlimitedQuota()
	case quotaKindBounded:
		if raw.Remaining == nil {
			return fmt.Errorf("bounded quota without remaining")
		}
		*q = BoundedQuota(*raw.Remaining)
	default:
		return fmt.Errorf("unknown quota kind %q", raw.Kind)
	}
	return nil
}

// RemainingDays is the number of whole days left in the billing period.
// Known is false when the period end is absent or unparseable; Days may be
// negative once the period has elapsed.
type RemainingDays struct {
	Known bool
	Days  int
}

// UnknownDays is the "unknown" value, distinct from zero.
func UnknownDays() RemainingDays {
	return RemainingDays{}
}

// KnownDays wraps a computed day count.
func KnownDays(days int) RemainingDays {
	return RemainingDays{Known: true, Days: days}
}

// MarshalJSON encodes unknown as null.
func (d RemainingDays) MarshalJSON() ([]byte, error) {
	if !d.Known {
		return []byte("null"), nil
	}
	return json.Marshal(d.Days)
}

func (d *RemainingDays) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = UnknownDays()
		return nil
	}
	var days int
	if err := json.Unmarshal(data, &days); err != nil {
		return err
	}
	*d = KnownDays(days)
	return nil
}

// Entitlement is the set of facts derived from a user's subscription and usage
// at one instant.
type Entitlement struct {
	Tier             Tier          `json:"tier"`
	CanGenerateStory bool          `json:"can_generate_story"`
	RemainingStories StoryQuota    `json:"remaining_stories"`
	RemainingDays    RemainingDays `json:"remaining_days"`
	StoryLimit       int           `json:"story_limit"`
	StoriesUsed      int           `json:"stories_used"`
	WindowExpired    bool          `json:"window_expired"`
	Features         []string      `json:"features"`
	EvaluatedAt      time.Time     `json:"evaluated_at"`
}
