package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/greyfinance/limitguard/internal/limits"
	"github.com/greyfinance/limitguard/internal/observability"
)

const refreshWorkerName = "limit_cache_refresh"

// RefreshWorker keeps the limit snapshot warm in the background so the
// first evaluation after a TTL expiry does not pay the reload latency.
// Safe to run alongside explicit cache invalidation.
type RefreshWorker struct {
	cache    *limits.Cache
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRefreshWorker creates a worker refreshing the cache at the default
// interval.
func NewRefreshWorker(cache *limits.Cache) *RefreshWorker {
	return &RefreshWorker{
		cache:    cache,
		interval: 30 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// WithInterval sets the refresh interval.
func (w *RefreshWorker) WithInterval(interval time.Duration) *RefreshWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start runs the refresh loop until Stop is called or the context is
// canceled.
func (w *RefreshWorker) Start(ctx context.Context) {
	zap.L().Info("limit cache refresh worker starting", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("limit cache refresh worker stopping", zap.String("cause", "context canceled"))
			return
		case <-w.stopCh:
			zap.L().Info("limit cache refresh worker stopping", zap.String("cause", "stop signal"))
			return
		case <-ticker.C:
			w.refreshOnce(ctx)
		}
	}
}

// Stop signals the worker to stop. Safe to call more than once.
func (w *RefreshWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// Run starts the worker in a goroutine and returns its stop function.
func (w *RefreshWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *RefreshWorker) refreshOnce(ctx context.Context) {
	loaded, err := w.cache.Refresh(ctx)
	if err != nil {
		observability.IncrementWorkerRun(refreshWorkerName, "error")
		zap.L().Error("limit cache refresh failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun(refreshWorkerName, "ok")
	zap.L().Debug("limit cache refreshed", zap.Int("active_limits", len(loaded)))
}
