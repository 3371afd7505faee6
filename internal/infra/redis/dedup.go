package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "storytime:webhook:event:"

type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewClient connects to a single Redis node and pings it.
func NewClient(cfg Config) (*goredis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("no Redis address provided")
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// commands is the part of the go-redis client the deduplicator uses.
type commands interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// EventDeduplicator implements domain.EventDeduplicator with SET NX keys that
// expire after ttl.
type EventDeduplicator struct {
	client commands
	ttl    time.Duration
}

func NewEventDeduplicator(client commands, ttl time.Duration) *EventDeduplicator {
	return &EventDeduplicator{client: client, ttl: ttl}
}

func (d *EventDeduplicator) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return true, nil
	}
	first, err := d.client.SetNX(ctx, keyPrefix+eventID, time.Now().UTC().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark event %s: %w", eventID, err)
	}
	return first, nil
}

// Forget clears the marker so a redelivery of the event is processed again.
func (d *EventDeduplicator) Forget(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}
	if err := d.client.Del(ctx, keyPrefix+eventID).Err(); err != nil {
		return fmt.Errorf("forget event %s: %w", eventID, err)
	}
	return nil
}
