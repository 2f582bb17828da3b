package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAllowedCachesWithinTTL(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	lookups := 0
	c := New(30*time.Second, clock, func(ctx context.Context, principal string) (bool, error) {
		lookups++
		return true, nil
	})

	for i := 0; i < 5; i++ {
		allowed, err := c.Allowed(context.Background(), "admin-1")
		if err != nil || !allowed {
			t.Fatalf("Allowed = %v, %v", allowed, err)
		}
	}
	if lookups != 1 {
		t.Fatalf("lookups = %d, want 1 within TTL", lookups)
	}
}

func TestAllowedRefreshesAfterTTL(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	lookups := 0
	c := New(30*time.Second, clock, func(ctx context.Context, principal string) (bool, error) {
		lookups++
		return lookups == 1, nil
	})

	if allowed, _ := c.Allowed(context.Background(), "admin-1"); !allowed {
		t.Fatalf("first lookup should allow")
	}

	now = now.Add(31 * time.Second)
	if allowed, _ := c.Allowed(context.Background(), "admin-1"); allowed {
		t.Fatalf("expired entry should have refreshed to revoked")
	}
	if lookups != 2 {
		t.Fatalf("lookups = %d, want 2 after expiry", lookups)
	}
}

func TestAllowedNeverCachesErrors(t *testing.T) {
	now := time.Unix(1000, 0)
	lookups := 0
	c := New(30*time.Second, func() time.Time { return now }, func(ctx context.Context, principal string) (bool, error) {
		lookups++
		if lookups == 1 {
			return false, errors.New("db down")
		}
		return true, nil
	})

	if _, err := c.Allowed(context.Background(), "admin-1"); err == nil {
		t.Fatalf("first lookup should surface the error")
	}
	allowed, err := c.Allowed(context.Background(), "admin-1")
	if err != nil || !allowed {
		t.Fatalf("second lookup should retry, got %v, %v", allowed, err)
	}
}

func TestInvalidateForcesRefresh(t *testing.T) {
	now := time.Unix(1000, 0)
	lookups := 0
	c := New(30*time.Second, func() time.Time { return now }, func(ctx context.Context, principal string) (bool, error) {
		lookups++
		return true, nil
	})

	_, _ = c.Allowed(context.Background(), "admin-1")
	c.Invalidate("admin-1")
	_, _ = c.Allowed(context.Background(), "admin-1")
	if lookups != 2 {
		t.Fatalf("lookups = %d, want 2 after invalidation", lookups)
	}
}

func TestResetDropsEveryPrincipal(t *testing.T) {
	now := time.Unix(1000, 0)
	lookups := 0
	c := New(30*time.Second, func() time.Time { return now }, func(ctx context.Context, principal string) (bool, error) {
		lookups++
		return true, nil
	})

	_, _ = c.Allowed(context.Background(), "admin-1")
	_, _ = c.Allowed(context.Background(), "admin-2")
	c.Reset()
	_, _ = c.Allowed(context.Background(), "admin-1")
	_, _ = c.Allowed(context.Background(), "admin-2")
	if lookups != 4 {
		t.Fatalf("lookups = %d, want 4 after reset", lookups)
	}
}
