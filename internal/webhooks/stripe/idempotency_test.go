package stripewebhook

import (
	"context"
	"testing"
	"time"
)

type stubIdempotencyStore struct {
	keys map[string]string
}

func newStubIdempotencyStore() *stubIdempotencyStore {
	return &stubIdempotencyStore{keys: map[string]string{}}
}

func (s *stubIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	return s.keys[key], nil
}

func (s *stubIdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, exists := s.keys[key]; exists {
		return false, nil
	}
	s.keys[key] = "1"
	return true, nil
}

func (s *stubIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "ps:idempotency:" + scope + ":" + id
}

func (s *stubIdempotencyStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func TestIdempotencyGuardClaimsOnce(t *testing.T) {
	guard, err := NewIdempotencyGuard(newStubIdempotencyStore(), time.Hour, "stripe")
	if err != nil {
		t.Fatalf("setup guard: %v", err)
	}
	ctx := context.Background()

	dup, err := guard.CheckAndMark(ctx, "evt_1")
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if dup {
		t.Fatalf("first delivery flagged as duplicate")
	}

	dup, err = guard.CheckAndMark(ctx, "evt_1")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if !dup {
		t.Fatalf("redelivery not flagged as duplicate")
	}
}

func TestIdempotencyGuardReleaseAllowsRetry(t *testing.T) {
	guard, err := NewIdempotencyGuard(newStubIdempotencyStore(), time.Hour, "stripe")
	if err != nil {
		t.Fatalf("setup guard: %v", err)
	}
	ctx := context.Background()

	if _, err := guard.CheckAndMark(ctx, "evt_retry"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := guard.Delete(ctx, "evt_retry"); err != nil {
		t.Fatalf("release: %v", err)
	}

	dup, err := guard.CheckAndMark(ctx, "evt_retry")
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if dup {
		t.Fatalf("released event should be claimable again")
	}
}

func TestIdempotencyGuardRejectsEmptyEventID(t *testing.T) {
	guard, err := NewIdempotencyGuard(newStubIdempotencyStore(), time.Hour, "stripe")
	if err != nil {
		t.Fatalf("setup guard: %v", err)
	}

	if _, err := guard.CheckAndMark(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty event id")
	}
}
