package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Tiered unifies the local and shared tiers behind one best-effort contract.
// Reads check local first and backfill it on a shared hit; writes go to both
// tiers concurrently. Tier failures are logged and swallowed: the cache is a
// performance layer, never a source of truth, so every failure degrades to
// "absent".
type Tiered struct {
	local    Tier
	shared   Tier
	localTTL time.Duration
	logger   *slog.Logger
}

func NewTiered(local, shared Tier, localTTL time.Duration, logger *slog.Logger) *Tiered {
	if localTTL <= 0 {
		localTTL = 30 * time.Second
	}
	return &Tiered{local: local, shared: shared, localTTL: localTTL, logger: logger}
}

func (c *Tiered) Get(ctx context.Context, key string) (string, bool) {
	val, _, ok, err := c.local.Get(ctx, key)
	if err != nil {
		c.logger.Warn("local cache get failed", "key", key, "error", err)
	} else if ok {
		return val, true
	}

	val, remaining, ok, err := c.shared.Get(ctx, key)
	if err != nil {
		c.logger.Warn("shared cache get failed", "key", key, "error", err)
		return "", false
	}
	if !ok {
		return "", false
	}

	// Backfill with min(remaining, localTTL) so the local copy never
	// outlives the shared entry it shadows.
	backfillTTL := c.localTTL
	if remaining > 0 && remaining < backfillTTL {
		backfillTTL = remaining
	}
	if err := c.local.Set(ctx, key, val, backfillTTL); err != nil {
		c.logger.Warn("local cache backfill failed", "key", key, "error", err)
	}
	return val, true
}

func (c *Tiered) Set(ctx context.Context, key, value string, ttl time.Duration) {
	localTTL := ttl
	if localTTL <= 0 || localTTL > c.localTTL {
		localTTL = c.localTTL
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := c.local.Set(ctx, key, value, localTTL); err != nil {
			c.logger.Warn("local cache set failed", "key", key, "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := c.shared.Set(ctx, key, value, ttl); err != nil {
			c.logger.Warn("shared cache set failed", "key", key, "error", err)
		}
	}()
	wg.Wait()
}

func (c *Tiered) Delete(ctx context.Context, key string) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := c.local.Delete(ctx, key); err != nil {
			c.logger.Warn("local cache delete failed", "key", key, "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := c.shared.Delete(ctx, key); err != nil {
			c.logger.Warn("shared cache delete failed", "key", key, "error", err)
		}
	}()
	wg.Wait()
}

func (c *Tiered) Clear(ctx context.Context, prefix string) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := c.local.Clear(ctx, prefix); err != nil {
			c.logger.Warn("local cache clear failed", "prefix", prefix, "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := c.shared.Clear(ctx, prefix); err != nil {
			c.logger.Warn("shared cache clear failed", "prefix", prefix, "error", err)
		}
	}()
	wg.Wait()
}
