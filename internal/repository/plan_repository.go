package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/supabase-community/postgrest-go"

	"storytime-api/internal/domain"
)

const plansTable = "subscription_plans"

// PlanRepository reads the public plan catalog with the anon client.
type PlanRepository struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
}

func NewPlanRepository(supabaseClient domain.SupabaseClient, logger domain.Logger) *PlanRepository {
	return &PlanRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

// List returns every plan, cheapest first.
func (r *PlanRepository) List(ctx context.Context) ([]*domain.SubscriptionPlan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := r.supabaseClient.DB()
	if client == nil {
		return nil, domain.ErrSupabaseNotConfigured
	}

	data, _, err := client.From(plansTable).
		Select("*", "", false).
		Order("price_cents", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	var plans []*domain.SubscriptionPlan
	if err := json.Unmarshal(data, &plans); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if plans == nil {
		plans = []*domain.SubscriptionPlan{}
	}
	return plans, nil
}

func (r *PlanRepository) GetByID(ctx context.Context, id string) (*domain.SubscriptionPlan, error) {
	return r.getOne(ctx, "id", id)
}

func (r *PlanRepository) GetByStripePriceID(ctx context.Context, priceID string) (*domain.SubscriptionPlan, error) {
	return r.getOne(ctx, "stripe_price_id", priceID)
}

// getOne returns domain.ErrPlanNotFound when no row matches.
func (r *PlanRepository) getOne(ctx context.Context, column, value string) (*domain.SubscriptionPlan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if value == "" {
		return nil, domain.ErrPlanNotFound
	}

	client := r.supabaseClient.DB()
	if client == nil {
		return nil, domain.ErrSupabaseNotConfigured
	}

	data, _, err := client.From(plansTable).
		Select("*", "", false).
		Eq(column, value).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	var plans []domain.SubscriptionPlan
	if err := json.Unmarshal(data, &plans); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(plans) == 0 {
		return nil, domain.ErrPlanNotFound
	}
	return &plans[0], nil
}
