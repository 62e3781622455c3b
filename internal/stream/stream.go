// Package stream fans claim events out to live subscribers (SSE clients).
package stream

import (
	"context"
	"sync"
	"sync/atomic"

	"claimdesk.org/internal/claims"
)

const subscriberBuffer = 16

// Stream implements claims.Publisher.
type Stream struct {
	mu      sync.RWMutex
	subs    map[int]chan claims.Event
	next    int
	dropped atomic.Int64
}

var _ claims.Publisher = (*Stream)(nil)

func New() *Stream {
	return &Stream{subs: make(map[int]chan claims.Event)}
}

// Subscribe registers a subscriber and returns a channel which will receive events.
// The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan claims.Event {
	ch := make(chan claims.Event, subscriberBuffer)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers. Slow subscribers miss it.
func (s *Stream) Publish(evt claims.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			s.dropped.Add(1)
		}
	}
}

// Subscribers is the number of live subscriptions.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Dropped counts events not delivered because a subscriber buffer was full.
func (s *Stream) Dropped() int64 { return s.dropped.Load() }
