// Package entitlement derives plan tier, story quota, feature access and billing
// period facts from a user's subscription and usage records.
//
// Every function is a pure function of its inputs and the instant passed in.
// Absent records are valid input, and malformed timestamps are read as absent,
// so nothing here returns an error.
package entitlement

import (
	"time"

	"storytime-api/internal/clock"
	"storytime-api/internal/domain"
)

// Evaluator binds the pure rules to a clock. It keeps no state between calls.
type Evaluator struct {
	clock clock.Clock
}

// NewEvaluator returns an evaluator reading c; a nil clock uses the system clock.
func NewEvaluator(c clock.Clock) *Evaluator {
	if c == nil {
		c = clock.System{}
	}
	return &Evaluator{clock: c}
}

// Now returns the evaluator's current instant.
func (e *Evaluator) Now() time.Time {
	return e.clock.Now()
}

// Evaluate derives the full entitlement from a single clock read.
func (e *Evaluator) Evaluate(sub *domain.Subscription, usage *domain.Usage) domain.Entitlement {
	return EvaluateAt(sub, usage, e.clock.Now())
}

// EvaluateMetered derives the entitlement used to serve and record generations.
func (e *Evaluator) EvaluateMetered(sub *domain.Subscription, usage *domain.Usage) domain.Entitlement {
	return EvaluateMeteredAt(sub, usage, e.clock.Now())
}

func (e *Evaluator) CanGenerateStory(sub *domain.Subscription, usage *domain.Usage) bool {
	return CanGenerateStory(sub, usage, e.clock.Now())
}

func (e *Evaluator) RemainingStories(sub *domain.Subscription, usage *domain.Usage) domain.StoryQuota {
	return RemainingStories(sub, usage, e.clock.Now())
}

func (e *Evaluator) RemainingDays(sub *domain.Subscription) domain.RemainingDays {
	return RemainingDays(sub, e.clock.Now())
}

// EvaluateAt derives every entitlement fact at now.
func EvaluateAt(sub *domain.Subscription, usage *domain.Usage, now time.Time) domain.Entitlement {
	plan := planOf(sub)

	expired := usage != nil && WindowExpired(usage, now)
	used := 0
	if usage != nil && !expired {
		used = usage.StoryCount
	}

	features := []string{}
	if plan != nil && plan.Features != nil {
		features = append(features, plan.Features...)
	}

	return domain.Entitlement{
		Tier:             ResolveTier(sub),
		CanGenerateStory: CanGenerateStory(sub, usage, now),
		RemainingStories: RemainingStories(sub, usage, now),
		RemainingDays:    RemainingDays(sub, now),
		StoryLimit:       storyLimit(plan),
		StoriesUsed:      used,
		WindowExpired:    expired,
		Features:         features,
		EvaluatedAt:      now,
	}
}

// EvaluateMeteredAt is EvaluateAt with users who have no subscription row held
// to the free default: their courtesy generation is counted by usage alone,
// so once it is spent in the current window no further story is permitted.
func EvaluateMeteredAt(sub *domain.Subscription, usage *domain.Usage, now time.Time) domain.Entitlement {
	e := EvaluateAt(sub, usage, now)
	if sub == nil {
		e.CanGenerateStory = e.RemainingStories.Remaining > 0
	}
	return e
}

// ResolveTier returns the plan tier, or free when there is no subscription,
// no plan reference, or the plan carries no tier.
func ResolveTier(sub *domain.Subscription) domain.Tier {
	plan := planOf(sub)
	if plan == nil || plan.Tier == "" {
		return domain.TierFree
	}
	return plan.Tier
}

// CanGenerateStory reports whether a story may be generated at now.
func CanGenerateStory(sub *domain.Subscription, usage *domain.Usage, now time.Time) bool {
	// No subscription provisioned yet: courtesy generation, tracked by usage alone.
	if sub == nil {
		return true
	}
	if ResolveTier(sub) != domain.TierFree {
		return true
	}
	if usage == nil {
		return true
	}
	if WindowExpired(usage, now) {
		return true
	}
	return usage.StoryCount < planOf(sub).EffectiveStoryLimit()
}

// RemainingStories returns the generations left in the current window.
func RemainingStories(sub *domain.Subscription, usage *domain.Usage, now time.Time) domain.StoryQuota {
	if ResolveTier(sub) != domain.TierFree {
		return domain.UnlimitedQuota()
	}

	limit := storyLimit(planOf(sub))
	if usage == nil || WindowExpired(usage, now) {
		return domain.BoundedQuota(limit)
	}

	remaining := limit - usage.StoryCount
	if remaining < 0 {
		remaining = 0
	}
	return domain.BoundedQuota(remaining)
}

// HasFeature reports exact, case-sensitive membership of feature in the plan's features.
func HasFeature(sub *domain.Subscription, feature string) bool {
	plan := planOf(sub)
	if plan == nil || plan.Features == nil {
		return false
	}
	for _, f := range plan.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// RemainingDays returns the ceiling of the whole days between now and the end
// of the billing period. The count goes negative once the period has elapsed.
func RemainingDays(sub *domain.Subscription, now time.Time) domain.RemainingDays {
	if sub == nil || sub.CurrentPeriodEnd == nil {
		return domain.UnknownDays()
	}
	end, ok := ParseTimestamp(*sub.CurrentPeriodEnd)
	if !ok {
		return domain.UnknownDays()
	}

	return domain.KnownDays(ceilDays(end, now))
}

const secondsPerDay = 24 * 60 * 60

// ceilDays is the ceiling of (end - now) in days. It works on Unix seconds so
// far-future dates do not hit time.Duration's ~292 year range.
func ceilDays(end, now time.Time) int {
	secs := end.Unix() - now.Unix()
	nanos := end.Nanosecond() - now.Nanosecond()
	if nanos < 0 {
		secs--
		nanos += int(time.Second)
	}

	days := secs / secondsPerDay
	if rem := secs % secondsPerDay; rem > 0 || (rem == 0 && nanos > 0) {
		days++
	}
	return int(days)
}

// WindowExpired reports whether the usage window started before
// WindowThreshold(now). A missing or unparseable reset date counts as expired.
func WindowExpired(usage *domain.Usage, now time.Time) bool {
	if usage == nil || usage.ResetDate == nil {
		return true
	}
	reset, ok := ParseTimestamp(*usage.ResetDate)
	if !ok {
		return true
	}
	return reset.Before(WindowThreshold(now))
}

// WindowThreshold is now moved back one calendar month. The day of month is
// clamped to the last day of the earlier month (Mar 31 -> Feb 28/29) and the
// time of day is kept.
func WindowThreshold(now time.Time) time.Time {
	year, month, day := now.Date()
	month--
	if month < time.January {
		month = time.December
		year--
	}
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), now.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// storyLimit is the plan's effective limit, never below zero.
func storyLimit(plan *domain.SubscriptionPlan) int {
	if limit := plan.EffectiveStoryLimit(); limit > 0 {
		return limit
	}
	return 0
}

func planOf(sub *domain.Subscription) *domain.SubscriptionPlan {
	if sub == nil {
		return nil
	}
	return sub.Plan
}
