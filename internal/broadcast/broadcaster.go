// ABOUTME: In-memory fan-out broadcaster for credential lifecycle events
// ABOUTME: Each subscriber has a bounded buffer; full buffers drop and count

package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

const (
	// SubscriberBufferSize is the channel buffer for each subscriber.
	SubscriberBufferSize = 64
)

// Broadcaster provides in-memory pub/sub for Events. Publish never blocks:
// an event that does not fit a subscriber's buffer is dropped for that
// subscriber only.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan *Event // subID -> ch
	closed      bool
	logger      *slog.Logger

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]chan *Event),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber. Returns a channel that receives events
// and a subscription ID for Unsubscribe. The subscription is cleaned up when
// ctx is cancelled. Subscribing to a closed broadcaster yields a closed
// channel.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan *Event, string) {
	subID := uuid.New().String()
	ch := make(chan *Event, SubscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	b.subscribers[subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish sends event to every subscriber.
func (b *Broadcaster) Publish(event *Event) {
	// Sends happen under the read lock so Unsubscribe cannot close a channel
	// mid-send. They are non-blocking, so the lock is held briefly.
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	b.published.Add(1)

	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
			b.logger.Warn("dropped event for slow subscriber",
				"sub_id", id,
				"event_id", event.ID,
				"event_type", event.Type)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, exists := b.subscribers[subID]
	if !exists {
		return
	}
	delete(b.subscribers, subID)
	close(ch)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// SubscriberCount returns the number of live subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Published returns how many events have been published.
func (b *Broadcaster) Published() uint64 {
	return b.published.Load()
}

// Dropped returns how many per-subscriber deliveries were dropped because a
// buffer was full.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Close shuts down the broadcaster and closes all subscriber channels.
// Later Publish calls are ignored.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for subID, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, subID)
	}

	b.logger.Debug("broadcaster closed")
}
