package notifications

import (
	"context"
	"sync"
)

// Publisher pushes freshly persisted notifications to live viewers.
type Publisher interface {
	Publish(ctx context.Context, records ...Notification)
}

// Feed is an in-process fan-out of new notifications to subscribers keyed by
// recipient. Delivery is best-effort: a subscriber whose buffer is full
// misses the message and picks it up on its next list call.
type Feed struct {
	mu         sync.RWMutex
	subs       map[string]map[chan Notification]struct{}
	bufferSize int
	closed     bool
}

// NewFeed creates a feed with the given per-subscriber buffer.
func NewFeed(bufferSize int) *Feed {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &Feed{
		subs:       make(map[string]map[chan Notification]struct{}),
		bufferSize: bufferSize,
	}
}

// Subscribe returns a channel of notifications for r. The channel is closed
// when ctx is done or the feed is closed.
func (f *Feed) Subscribe(ctx context.Context, r Recipient) <-chan Notification {
	ch := make(chan Notification, f.bufferSize)
	key := r.Key()

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return ch
	}
	if f.subs[key] == nil {
		f.subs[key] = make(map[chan Notification]struct{})
	}
	f.subs[key][ch] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.unsubscribe(key, ch)
	}()
	return ch
}

func (f *Feed) unsubscribe(key string, ch chan Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.subs[key]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	if len(set) == 0 {
		delete(f.subs, key)
	}
	close(ch)
}

// Publish delivers each record to the subscribers of its recipient.
func (f *Feed) Publish(ctx context.Context, records ...Notification) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	for _, n := range records {
		for ch := range f.subs[n.Recipient().Key()] {
			select {
			case ch <- n:
			default:
			}
		}
	}
}

// Subscribers returns the number of live subscriptions for r.
func (f *Feed) Subscribers(r Recipient) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[r.Key()])
}

// Close closes every subscription. Publish becomes a no-op.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for key, set := range f.subs {
		for ch := range set {
			close(ch)
		}
		delete(f.subs, key)
	}
}
