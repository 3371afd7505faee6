package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"storytime-api/internal/domain"
	"storytime-api/internal/entitlement"
	"storytime-api/internal/metrics"
)

const maxUsageWriteAttempts = 3

type usageService struct {
	subscriptions domain.SubscriptionRepository
	usage         domain.UsageRepository
	evaluator     *entitlement.Evaluator
	metrics       *metrics.Metrics
	logger        domain.Logger
}

func NewUsageService(
	subscriptions domain.SubscriptionRepository,
	usage domain.UsageRepository,
	evaluator *entitlement.Evaluator,
	m *metrics.Metrics,
	logger domain.Logger,
) *usageService {
	return &usageService{
		subscriptions: subscriptions,
		usage:         usage,
		evaluator:     evaluator,
		metrics:       m,
		logger:        logger,
	}
}

// RecordStoryGeneration checks the quota and, when permitted, persists one more
// generation. The write is a compare-and-swap against the row that was
// evaluated; lost races re-read and re-evaluate.
func (s *usageService) RecordStoryGeneration(ctx context.Context, userID string, token string) (*domain.Entitlement, error) {
	sub, err := s.subscriptions.GetByUserID(ctx, userID, token)
	if err != nil {
		s.metrics.ObserveGeneration(metrics.OutcomeError)
		return nil, err
	}

	for attempt := 1; attempt <= maxUsageWriteAttempts; attempt++ {
		current, err := s.usage.GetByUserID(ctx, userID, token)
		if err != nil {
			s.metrics.ObserveGeneration(metrics.OutcomeError)
			return nil, err
		}

		now := s.evaluator.Now()
		decision := entitlement.EvaluateMeteredAt(sub, current, now)
		s.metrics.ObserveDecision(decision)
		if !decision.CanGenerateStory {
			s.metrics.ObserveGeneration(metrics.OutcomeRefused)
			s.logger.Info("Story generation refused", "user_id", userID, "tier", decision.Tier)
			return &decision, domain.ErrStoryLimitReached
		}

		next := nextUsage(userID, current, now)

		var written bool
		if current == nil {
			written, err = s.usage.Create(ctx, next, token)
		} else {
			written, err = s.usage.CompareAndSwap(ctx, current, next, token)
		}
		if err != nil {
			s.metrics.ObserveGeneration(metrics.OutcomeError)
			s.logger.Error("Failed to record story generation", err, "user_id", userID)
			return nil, err
		}

		if written {
			after := entitlement.EvaluateMeteredAt(sub, next, now)
			s.metrics.ObserveGeneration(metrics.OutcomeRecorded)
			s.logger.Info("Story generation recorded",
				"user_id", userID,
				"tier", after.Tier,
				"story_count", next.StoryCount)
			return &after, nil
		}

		s.logger.Debug("Usage changed concurrently, retrying", "user_id", userID, "attempt", attempt)
	}

	s.metrics.ObserveGeneration(metrics.OutcomeConflict)
	return nil, domain.ErrUsageConflict
}

// ResetUsage restores the full quota for userID starting now.
func (s *usageService) ResetUsage(ctx context.Context, userID string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return &domain.ValidationError{Field: "user_id", Message: "must be a UUID"}
	}
	return s.usage.Reset(ctx, userID, entitlement.FormatTimestamp(s.evaluator.Now()))
}

// nextUsage is the row after one more generation at now. A missing row or an
// expired window starts a new window at now.
func nextUsage(userID string, current *domain.Usage, now time.Time) *domain.Usage {
	if current == nil || entitlement.WindowExpired(current, now) {
		reset := entitlement.FormatTimestamp(now)
		return &domain.Usage{UserID: userID, StoryCount: 1, ResetDate: &reset}
	}
	return &domain.Usage{
		UserID:     userID,
		StoryCount: current.StoryCount + 1,
		ResetDate:  current.ResetDate,
	}
}
