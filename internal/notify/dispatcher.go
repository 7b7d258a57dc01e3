package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/greyfinance/limitguard/internal/observability"
)

// Sender delivers one message to one channel. Implementations talk to the
// actual transport (Slack, webhook); delivery itself is outside the engine.
type Sender interface {
	Send(ctx context.Context, channel, message string, alertIDs []uuid.UUID) error
}

type dispatchJob struct {
	channel  string
	message  string
	alertIDs []uuid.UUID
}

// Dispatcher queues grouped messages and delivers them asynchronously
// through a worker pool. Enqueueing never blocks evaluation beyond the
// buffered queue.
type Dispatcher struct {
	sender  Sender
	queue   chan dispatchJob
	workers int

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

var _ Notifier = (*Dispatcher)(nil)

// NewDispatcher starts workers draining the dispatch queue.
func NewDispatcher(sender Sender, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	d := &Dispatcher{
		sender:  sender,
		queue:   make(chan dispatchJob, queueSize),
		workers: workers,
		stopCh:  make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Notify enqueues the grouped message for asynchronous delivery.
func (d *Dispatcher) Notify(ctx context.Context, channel, message string, alertIDs []uuid.UUID) error {
	job := dispatchJob{channel: channel, message: message, alertIDs: alertIDs}
	select {
	case d.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.queue:
			d.deliver(job)
		case <-d.stopCh:
			return
		}
	}
}

func (d *Dispatcher) deliver(job dispatchJob) {
	err := d.sender.Send(context.Background(), job.channel, job.message, job.alertIDs)
	if err != nil {
		observability.IncrementNotification(job.channel, "failed")
		zap.L().Error("notification delivery failed",
			zap.String("channel", job.channel),
			zap.Int("alerts", len(job.alertIDs)),
			zap.Error(err),
		)
		return
	}
	observability.IncrementNotification(job.channel, "sent")
}

// Shutdown stops the workers after the in-flight deliveries finish. Queued
// but undelivered jobs are dropped; alert records already carry the
// rendered text, so a later re-dispatch is safe.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.stopOnce.Do(func() {
		close(d.stopCh)
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogSender is a stand-in transport that records deliveries in the log.
// Real Slack/webhook delivery is provided by the hosting platform.
type LogSender struct{}

func (LogSender) Send(_ context.Context, channel, message string, alertIDs []uuid.UUID) error {
	zap.L().Info("notification",
		zap.String("channel", channel),
		zap.Int("alerts", len(alertIDs)),
		zap.String("message", message),
	)
	return nil
}
