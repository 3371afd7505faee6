package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"storytime-api/internal/domain"
	"storytime-api/internal/entitlement"
	"storytime-api/internal/metrics"
)

type entitlementService struct {
	subscriptions domain.SubscriptionRepository
	usage         domain.UsageRepository
	plans         domain.PlanRepository
	evaluator     *entitlement.Evaluator
	metrics       *metrics.Metrics
	logger        domain.Logger
}

func NewEntitlementService(
	subscriptions domain.SubscriptionRepository,
	usage domain.UsageRepository,
	plans domain.PlanRepository,
	evaluator *entitlement.Evaluator,
	m *metrics.Metrics,
	logger domain.Logger,
) *entitlementService {
	return &entitlementService{
		subscriptions: subscriptions,
		usage:         usage,
		plans:         plans,
		evaluator:     evaluator,
		metrics:       m,
		logger:        logger,
	}
}

// GetEntitlements reads fresh records and evaluates them against a single
// clock reading.
func (s *entitlementService) GetEntitlements(ctx context.Context, userID string, token string) (*domain.Entitlement, error) {
	sub, usage, err := loadRecords(ctx, s.subscriptions, s.usage, userID, token)
	if err != nil {
		s.logger.Error("Failed to load entitlement records", err, "user_id", userID)
		return nil, err
	}

	e := s.evaluator.EvaluateMetered(sub, usage)
	s.metrics.ObserveDecision(e)
	return &e, nil
}

func (s *entitlementService) HasFeature(ctx context.Context, userID, feature string, token string) (bool, error) {
	sub, err := s.subscriptions.GetByUserID(ctx, userID, token)
	if err != nil {
		s.logger.Error("Failed to load subscription", err, "user_id", userID)
		return false, err
	}
	return entitlement.HasFeature(sub, feature), nil
}

func (s *entitlementService) ListPlans(ctx context.Context) ([]*domain.SubscriptionPlan, error) {
	plans, err := s.plans.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list plans", err)
		return nil, err
	}
	return plans, nil
}

// loadRecords fetches the subscription and usage rows concurrently.
func loadRecords(
	ctx context.Context,
	subscriptions domain.SubscriptionRepository,
	usageRepo domain.UsageRepository,
	userID, token string,
) (*domain.Subscription, *domain.Usage, error) {
	var (
		sub   *domain.Subscription
		usage *domain.Usage
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sub, err = subscriptions.GetByUserID(gctx, userID, token)
		return err
	})
	g.Go(func() error {
		var err error
		usage, err = usageRepo.GetByUserID(gctx, userID, token)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return sub, usage, nil
}
