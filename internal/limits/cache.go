package limits

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/greyfinance/limitguard/internal/domain"
	"github.com/greyfinance/limitguard/internal/engine"
	"github.com/greyfinance/limitguard/internal/observability"
)

// Source loads the configured limit set from persistent storage.
type Source interface {
	LoadActiveLimits(ctx context.Context) ([]domain.Limit, error)
}

// Clock abstracts time for deterministic cache tests.
type Clock func() time.Time

// Cache is a TTL snapshot cache over a limit source. Reads within the TTL
// serve the cached snapshot; administrators invalidate explicitly on limit
// writes. Snapshots are eventually consistent: up to the TTL, a
// just-deactivated limit may still be evaluated.
type Cache struct {
	source Source
	ttl    time.Duration
	now    Clock

	mu        sync.RWMutex
	snapshot  []domain.Limit
	loadedAt  time.Time
	populated bool
}

var _ engine.LimitSource = (*Cache)(nil)

// NewCache creates a cache with the given TTL. A zero clock defaults to
// time.Now.
func NewCache(source Source, ttl time.Duration, now Clock) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{source: source, ttl: ttl, now: now}
}

// GetActiveLimits returns the cached snapshot, reloading it when stale.
func (c *Cache) GetActiveLimits(ctx context.Context) ([]domain.Limit, error) {
	c.mu.RLock()
	if c.populated && c.now().Sub(c.loadedAt) < c.ttl {
		snapshot := c.snapshot
		c.mu.RUnlock()
		observability.IncrementLimitCacheEvent("hit")
		return snapshot, nil
	}
	c.mu.RUnlock()

	return c.Refresh(ctx)
}

// Refresh reloads the snapshot from the source unconditionally.
func (c *Cache) Refresh(ctx context.Context) ([]domain.Limit, error) {
	limits, err := c.source.LoadActiveLimits(ctx)
	if err != nil {
		observability.IncrementLimitCacheEvent("load_error")
		return nil, fmt.Errorf("load active limits: %w", err)
	}

	c.mu.Lock()
	c.snapshot = limits
	c.loadedAt = c.now()
	c.populated = true
	c.mu.Unlock()

	observability.IncrementLimitCacheEvent("refresh")
	return limits, nil
}

// Invalidate drops the snapshot; the next read reloads from the source.
// Called on limit create/update/delete.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.populated = false
	c.snapshot = nil
	c.mu.Unlock()
	observability.IncrementLimitCacheEvent("invalidate")
}
