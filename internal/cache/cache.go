// Package cache provides the two-tier trust-state cache: a bounded in-memory
// tier in front of a shared Redis tier, unified behind a best-effort facade.
package cache

import (
	"context"
	"time"
)

// Tier is one cache level. Implementations report failures; the Tiered
// facade decides what to do with them. Get reports the entry's remaining
// TTL alongside the value; zero means the expiry is unknown or unbounded.
type Tier interface {
	Get(ctx context.Context, key string) (value string, remaining time.Duration, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context, prefix string) error
}
