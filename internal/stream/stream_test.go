package stream

import (
	"context"
	"testing"
	"time"

	"claimdesk.org/internal/claims"
)

func TestPublishReachesEverySubscriber(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := s.Subscribe(ctx)
	b := s.Subscribe(ctx)
	s.Publish(claims.Event{Type: claims.EventSubmitted, ClaimID: 7})

	for _, ch := range []<-chan claims.Event{a, b} {
		select {
		case evt := <-ch:
			if evt.ClaimID != 7 {
				t.Fatalf("unexpected event %+v", evt)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = s.Subscribe(ctx)

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+5; i++ {
			s.Publish(claims.Event{ClaimID: int64(i)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	if s.Dropped() != 5 {
		t.Fatalf("expected 5 dropped events, got %d", s.Dropped())
	}
}

func TestCancelUnsubscribes(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)
	if s.Subscribers() != 1 {
		t.Fatalf("expected one subscriber")
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	if s.Subscribers() != 0 {
		t.Fatalf("subscriber not removed")
	}
	s.Publish(claims.Event{ClaimID: 1})
}
