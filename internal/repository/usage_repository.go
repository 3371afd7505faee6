package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"storytime-api/internal/domain"
)

const usageTable = "usage"

// uniqueViolation is the Postgres error code PostgREST reports for duplicate keys.
const uniqueViolation = "23505"

// UsageRepository implements the domain.UsageRepository interface
type UsageRepository struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
}

func NewUsageRepository(supabaseClient domain.SupabaseClient, logger domain.Logger) *UsageRepository {
	return &UsageRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

func (r *UsageRepository) GetByUserID(ctx context.Context, userID string, token string) (*domain.Usage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to get client with token: %w", err)
	}

	data, _, err := client.From(usageTable).
		Select("user_id,story_count,reset_date", "", false).
		Eq("user_id", userID).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}

	rows, err := decodeUsage(data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Create inserts the first usage row for a user. A concurrent insert that won
// the race is reported as (false, nil).
func (r *UsageRepository) Create(ctx context.Context, usage *domain.Usage, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return false, fmt.Errorf("failed to get client with token: %w", err)
	}

	data := map[string]interface{}{
		"user_id":     usage.UserID,
		"story_count": usage.StoryCount,
		"reset_date":  usage.ResetDate,
	}

	_, _, err = client.From(usageTable).
		Insert(data, false, "", "", "").
		Execute()
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create usage: %w", err)
	}
	return true, nil
}

// CompareAndSwap updates the row only while story_count and reset_date still
// hold the values in expected.
func (r *UsageRepository) CompareAndSwap(ctx context.Context, expected, next *domain.Usage, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return false, fmt.Errorf("failed to get client with token: %w", err)
	}

	data := map[string]interface{}{
		"story_count": next.StoryCount,
		"reset_date":  next.ResetDate,
	}

	q := client.From(usageTable).
		Update(data, "representation", "").
		Eq("user_id", expected.UserID).
		Eq("story_count", strconv.Itoa(expected.StoryCount))
	if expected.ResetDate == nil {
		q = q.Is("reset_date", "null")
	} else {
		q = q.Eq("reset_date", *expected.ResetDate)
	}

	resp, _, err := q.Execute()
	if err != nil {
		return false, fmt.Errorf("failed to update usage: %w", err)
	}

	rows, err := decodeUsage(resp)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// Reset starts a fresh window for a user with the service-role client.
func (r *UsageRepository) Reset(ctx context.Context, userID string, resetDate string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := r.supabaseClient.Admin()
	if err != nil {
		return err
	}

	data := map[string]interface{}{
		"user_id":     userID,
		"story_count": 0,
		"reset_date":  resetDate,
	}

	_, _, err = client.From(usageTable).
		Upsert(data, "user_id", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to reset usage: %w", err)
	}

	r.logger.Info("Usage reset", "user_id", userID, "reset_date", resetDate)
	return nil
}

func decodeUsage(data []byte) ([]domain.Usage, error) {
	var rows []domain.Usage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return rows, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), uniqueViolation)
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
