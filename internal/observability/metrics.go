package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpDurationHistogram  *prometheus.HistogramVec
	evaluationCounter      *prometheus.CounterVec
	limitAlertCounter      *prometheus.CounterVec
	conflictRemovalCounter *prometheus.CounterVec
	limitCacheCounter      *prometheus.CounterVec
	notificationCounter    *prometheus.CounterVec
	workerRunCounter       *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		evaluationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "limit_evaluations_total",
			Help: "Transaction evaluations by verdict",
		}, []string{"verdict"})

		limitAlertCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "limit_alerts_total",
			Help: "Limit alerts produced, by category and decline effect",
		}, []string{"category", "declines"})

		conflictRemovalCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "limit_conflict_removals_total",
			Help: "Limits removed by the conflict resolver, by stage",
		}, []string{"stage"})

		limitCacheCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "limit_cache_events_total",
			Help: "Active-limit cache outcomes",
		}, []string{"outcome"})

		notificationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "limit_notifications_total",
			Help: "Grouped alert notifications dispatched, by channel and result",
		}, []string{"channel", "result"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			evaluationCounter,
			limitAlertCounter,
			conflictRemovalCounter,
			limitCacheCounter,
			notificationCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementEvaluation(declined bool) {
	if evaluationCounter == nil {
		return
	}
	verdict := "accepted"
	if declined {
		verdict = "declined"
	}
	evaluationCounter.WithLabelValues(verdict).Inc()
}

func IncrementLimitAlert(category string, declines bool) {
	if limitAlertCounter == nil {
		return
	}
	limitAlertCounter.WithLabelValues(category, strconv.FormatBool(declines)).Inc()
}

func IncrementConflictRemoval(stage string) {
	if conflictRemovalCounter == nil {
		return
	}
	conflictRemovalCounter.WithLabelValues(stage).Inc()
}

func IncrementLimitCacheEvent(outcome string) {
	if limitCacheCounter == nil {
		return
	}
	limitCacheCounter.WithLabelValues(outcome).Inc()
}

func IncrementNotification(channel, result string) {
	if notificationCounter == nil {
		return
	}
	notificationCounter.WithLabelValues(channel, result).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
