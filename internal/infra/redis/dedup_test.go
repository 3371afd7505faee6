package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type fakeCommands struct {
	mu   sync.Mutex
	keys map[string]time.Duration
	err  error
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{keys: map[string]time.Duration{}}
}

func (f *fakeCommands) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return goredis.NewBoolResult(false, f.err)
	}
	if _, ok := f.keys[key]; ok {
		return goredis.NewBoolResult(false, nil)
	}
	f.keys[key] = expiration
	return goredis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Del(ctx context.Context, keys ...string) *goredis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			delete(f.keys, k)
			n++
		}
	}
	return goredis.NewIntResult(n, f.err)
}

func TestEventDeduplicator_MarkProcessed(t *testing.T) {
	fake := newFakeCommands()
	dedup := NewEventDeduplicator(fake, time.Hour)
	ctx := context.Background()

	first, err := dedup.MarkProcessed(ctx, "evt_1")
	if err != nil || !first {
		t.Fatalf("expected first delivery to be new, got %v %v", first, err)
	}
	again, err := dedup.MarkProcessed(ctx, "evt_1")
	if err != nil || again {
		t.Fatalf("expected redelivery to be a duplicate, got %v %v", again, err)
	}
	if fake.keys[keyPrefix+"evt_1"] != time.Hour {
		t.Fatalf("expected key to carry the ttl, got %v", fake.keys)
	}
}

func TestEventDeduplicator_Forget(t *testing.T) {
	fake := newFakeCommands()
	dedup := NewEventDeduplicator(fake, time.Hour)
	ctx := context.Background()

	_, _ = dedup.MarkProcessed(ctx, "evt_1")
	if err := dedup.Forget(ctx, "evt_1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	first, _ := dedup.MarkProcessed(ctx, "evt_1")
	if !first {
		t.Fatalf("expected forgotten event to be processed again")
	}
}

func TestEventDeduplicator_Errors(t *testing.T) {
	fake := newFakeCommands()
	fake.err = errors.New("connection refused")
	dedup := NewEventDeduplicator(fake, time.Hour)

	if _, err := dedup.MarkProcessed(context.Background(), "evt_1"); err == nil {
		t.Fatalf("expected error from redis")
	}

	first, err := dedup.MarkProcessed(context.Background(), "")
	if err != nil || !first {
		t.Fatalf("expected events without id to pass through")
	}
}

func TestNewClient_RequiresAddress(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatalf("expected error without address")
	}
}
