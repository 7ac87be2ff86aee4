package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryClaimer_DuplicateAndRelease(t *testing.T) {
	c := NewMemoryClaimer(time.Hour)
	ctx := context.Background()

	t1, ok, err := c.Claim(ctx, "a1", "SM1")
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := c.Claim(ctx, "a1", "SM1"); ok {
		t.Fatalf("second claim should be refused")
	}
	if _, ok, _ := c.Claim(ctx, "a2", "SM1"); !ok {
		t.Fatalf("claims are scoped per account")
	}

	if err := c.Release(ctx, Ticket{Key: t1.Key, Owner: "someone-else"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, ok, _ := c.Claim(ctx, "a1", "SM1"); ok {
		t.Fatalf("foreign release must not drop the claim")
	}

	_ = c.Release(ctx, t1)
	if _, ok, _ := c.Claim(ctx, "a1", "SM1"); !ok {
		t.Fatalf("claim should be available after release")
	}
}

func TestMemoryClaimer_Expiry(t *testing.T) {
	c := NewMemoryClaimer(time.Minute)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c.clock = func() time.Time { return now }

	_, _, _ = c.Claim(context.Background(), "a1", "CA1")
	now = now.Add(time.Minute)
	if _, ok, _ := c.Claim(context.Background(), "a1", "CA1"); !ok {
		t.Fatalf("expired claim should be reclaimable")
	}
}

func TestClaim_RequiresIDs(t *testing.T) {
	if _, _, err := NewMemoryClaimer(0).Claim(context.Background(), "", "x"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, _, err := NewRedisClaimer(nil, 0).Claim(context.Background(), "a1", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestRedisClaimer_NilClientErrors(t *testing.T) {
	if _, _, err := NewRedisClaimer(nil, time.Second).Claim(context.Background(), "a1", "SM1"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
