// Package cache holds the admin permission cache. Permissions are looked up
// from the database at most once per TTL per principal; the cache is owned by
// the service instance that constructs it, with an injected clock, so there
// is no ambient module-level state to leak between requests or deployments.
package cache

import (
	"context"
	"sync"
	"time"
)

// Lookup resolves whether a principal currently holds admin permissions.
type Lookup func(ctx context.Context, principal string) (bool, error)

type entry struct {
	allowed   bool
	expiresAt time.Time
}

// AdminCache memoizes admin permission lookups with a TTL.
type AdminCache struct {
	ttl    time.Duration
	now    func() time.Time
	lookup Lookup

	mu      sync.Mutex
	entries map[string]entry
}

// New constructs a cache. A nil clock defaults to time.Now.
func New(ttl time.Duration, clock func() time.Time, lookup Lookup) *AdminCache {
	if clock == nil {
		clock = time.Now
	}
	return &AdminCache{
		ttl:     ttl,
		now:     clock,
		lookup:  lookup,
		entries: make(map[string]entry),
	}
}

// Allowed returns the cached decision for the principal, refreshing it via
// the lookup when missing or expired. Lookup errors are returned to the
// caller and never cached.
func (c *AdminCache) Allowed(ctx context.Context, principal string) (bool, error) {
	now := c.now()

	c.mu.Lock()
	if e, ok := c.entries[principal]; ok && now.Before(e.expiresAt) {
		c.mu.Unlock()
		return e.allowed, nil
	}
	c.mu.Unlock()

	allowed, err := c.lookup(ctx, principal)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	c.entries[principal] = entry{allowed: allowed, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()
	return allowed, nil
}

// Invalidate drops the cached decision for one principal.
func (c *AdminCache) Invalidate(principal string) {
	c.mu.Lock()
	delete(c.entries, principal)
	c.mu.Unlock()
}

// Reset drops every cached decision.
func (c *AdminCache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}
