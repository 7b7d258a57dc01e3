package limits

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greyfinance/limitguard/internal/domain"
)

type stubSource struct {
	limits []domain.Limit
	err    error
	loads  int
}

func (s *stubSource) LoadActiveLimits(context.Context) ([]domain.Limit, error) {
	s.loads++
	return s.limits, s.err
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func testLimit() domain.Limit {
	return &domain.CustomerLimit{
		LimitCore:  domain.LimitCore{ID: uuid.New(), Active: true, Category: domain.CategoryBusiness},
		CustomerID: uuid.New(),
	}
}

func TestCacheServesSnapshotWithinTTL(t *testing.T) {
	source := &stubSource{limits: []domain.Limit{testLimit()}}
	clock := &fakeClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	cache := NewCache(source, time.Minute, clock.Now)

	ctx := context.Background()
	first, err := cache.GetActiveLimits(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, source.loads)

	clock.Advance(59 * time.Second)
	second, err := cache.GetActiveLimits(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, source.loads, "reads within the TTL must not hit the source")
}

func TestCacheReloadsAfterTTL(t *testing.T) {
	source := &stubSource{limits: []domain.Limit{testLimit()}}
	clock := &fakeClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	cache := NewCache(source, time.Minute, clock.Now)

	ctx := context.Background()
	_, err := cache.GetActiveLimits(ctx)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = cache.GetActiveLimits(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, source.loads)
}

func TestCacheInvalidateForcesReload(t *testing.T) {
	source := &stubSource{limits: []domain.Limit{testLimit()}}
	clock := &fakeClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	cache := NewCache(source, time.Hour, clock.Now)

	ctx := context.Background()
	_, err := cache.GetActiveLimits(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, source.loads)

	cache.Invalidate()
	_, err = cache.GetActiveLimits(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, source.loads)
}

func TestCacheRefreshReloadsUnconditionally(t *testing.T) {
	source := &stubSource{limits: []domain.Limit{testLimit()}}
	clock := &fakeClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	cache := NewCache(source, time.Hour, clock.Now)

	ctx := context.Background()
	_, err := cache.GetActiveLimits(ctx)
	require.NoError(t, err)

	source.limits = []domain.Limit{testLimit(), testLimit()}
	reloaded, err := cache.Refresh(ctx)
	require.NoError(t, err)
	assert.Len(t, reloaded, 2)
	assert.Equal(t, 2, source.loads)

	// The fresh snapshot serves subsequent reads.
	served, err := cache.GetActiveLimits(ctx)
	require.NoError(t, err)
	assert.Len(t, served, 2)
	assert.Equal(t, 2, source.loads)
}

func TestCacheLoadErrorPropagates(t *testing.T) {
	source := &stubSource{err: errors.New("db down")}
	cache := NewCache(source, time.Minute, nil)

	_, err := cache.GetActiveLimits(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load active limits")
}
