package messaging

import (
	"context"
	"testing"
	"time"

	"ballotbox/contexts/governance/poll-registry/ports"
)

func TestBusDeliversToEverySubscriberOfTopic(t *testing.T) {
	bus := NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := make(chan ports.EventEnvelope, 1)
	second := make(chan ports.EventEnvelope, 1)
	other := make(chan ports.EventEnvelope, 1)
	subscribe := func(topic string, group string, out chan ports.EventEnvelope) {
		err := bus.Subscribe(ctx, topic, group, func(_ context.Context, event ports.EventEnvelope) error {
			out <- event
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}
	}
	subscribe("poll.vote_cast", "a", first)
	subscribe("poll.vote_cast", "b", second)
	subscribe("poll.closed", "a", other)

	if err := bus.Publish(ctx, "poll.vote_cast", ports.EventEnvelope{EventID: "evt-1"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	for _, ch := range []chan ports.EventEnvelope{first, second} {
		select {
		case event := <-ch:
			if event.EventID != "evt-1" {
				t.Fatalf("unexpected event %+v", event)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("subscriber did not receive event")
		}
	}
	select {
	case event := <-other:
		t.Fatalf("unrelated topic received %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusRemovesSubscriberOnCancel(t *testing.T) {
	bus := NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := bus.Subscribe(ctx, "poll.closed", "a", func(context.Context, ports.EventEnvelope) error { return nil }); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for {
		bus.mu.RLock()
		remaining := len(bus.subscribers["poll.closed"])
		bus.mu.RUnlock()
		if remaining == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("subscriber was not removed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
