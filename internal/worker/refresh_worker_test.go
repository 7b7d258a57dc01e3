package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greyfinance/limitguard/internal/domain"
	"github.com/greyfinance/limitguard/internal/limits"
)

type countingSource struct {
	loads atomic.Int64
}

func (s *countingSource) LoadActiveLimits(context.Context) ([]domain.Limit, error) {
	s.loads.Add(1)
	return nil, nil
}

func TestRefreshWorkerRefreshesCachePeriodically(t *testing.T) {
	source := &countingSource{}
	cache := limits.NewCache(source, time.Hour, nil)

	w := NewRefreshWorker(cache).WithInterval(10 * time.Millisecond)
	stop := w.Run(context.Background())
	defer stop()

	require.Eventually(t, func() bool {
		return source.loads.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRefreshWorkerStopIsIdempotent(t *testing.T) {
	source := &countingSource{}
	cache := limits.NewCache(source, time.Hour, nil)

	w := NewRefreshWorker(cache).WithInterval(time.Hour)
	stop := w.Run(context.Background())
	stop()
	stop()
}

func TestRefreshWorkerIgnoresNonPositiveInterval(t *testing.T) {
	source := &countingSource{}
	cache := limits.NewCache(source, time.Hour, nil)

	w := NewRefreshWorker(cache).WithInterval(0)
	assert.Equal(t, 30*time.Second, w.interval)
}
