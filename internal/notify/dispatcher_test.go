package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
	done chan struct{}
}

func newRecordingSender(expected int) *recordingSender {
	return &recordingSender{done: make(chan struct{}, expected)}
}

func (s *recordingSender) Send(_ context.Context, channel, message string, alertIDs []uuid.UUID) error {
	s.mu.Lock()
	s.sent = append(s.sent, sentMessage{channel: channel, message: message, alertIDs: alertIDs})
	s.mu.Unlock()
	s.done <- struct{}{}
	return nil
}

func (s *recordingSender) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-s.done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}
}

func TestDispatcherDeliversQueuedMessages(t *testing.T) {
	sender := newRecordingSender(2)
	d := NewDispatcher(sender, 2, 8)
	defer d.Shutdown(context.Background())

	ctx := context.Background()
	require.NoError(t, d.Notify(ctx, "#alerts", "first", []uuid.UUID{uuid.New()}))
	require.NoError(t, d.Notify(ctx, "#alerts-critical", "second", []uuid.UUID{uuid.New()}))

	sender.wait(t, 2)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.sent, 2)
	channels := map[string]bool{}
	for _, msg := range sender.sent {
		channels[msg.channel] = true
	}
	assert.True(t, channels["#alerts"])
	assert.True(t, channels["#alerts-critical"])
}

func TestDispatcherNotifyHonorsContextWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	d := NewDispatcher(blockingSender{block: block}, 1, 1)
	defer func() {
		close(block)
		d.Shutdown(context.Background())
	}()

	ctx := context.Background()
	// First job occupies the worker, second fills the queue.
	require.NoError(t, d.Notify(ctx, "#alerts", "occupying", nil))
	require.NoError(t, d.Notify(ctx, "#alerts", "queued", nil))

	canceled, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := d.Notify(canceled, "#alerts", "overflow", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type blockingSender struct {
	block chan struct{}
}

func (s blockingSender) Send(context.Context, string, string, []uuid.UUID) error {
	<-s.block
	return nil
}

func TestDispatcherShutdownIsIdempotent(t *testing.T) {
	d := NewDispatcher(newRecordingSender(0), 1, 1)
	require.NoError(t, d.Shutdown(context.Background()))
	require.NoError(t, d.Shutdown(context.Background()))
}
