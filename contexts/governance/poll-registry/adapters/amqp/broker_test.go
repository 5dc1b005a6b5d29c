package amqpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"ballotbox/contexts/governance/poll-registry/ports"

	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeAcknowledger struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *fakeAcknowledger) Ack(uint64, bool) error {
	a.acked++
	return nil
}

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(uint64, bool) error {
	a.nacked++
	return nil
}

func testEnvelope() ports.EventEnvelope {
	return ports.EventEnvelope{
		EventID:       "evt-1",
		EventType:     "poll.vote_cast",
		OccurredAt:    time.Date(2026, time.May, 3, 9, 0, 0, 0, time.UTC),
		SourceService: "poll-registry",
		TraceID:       "evt-1",
		SchemaVersion: 1,
		PartitionKey:  "lunch",
		Data:          json.RawMessage(`{"poll_id":"lunch"}`),
	}
}

func TestToPublishingCarriesEnvelopeMetadata(t *testing.T) {
	msg, err := toPublishing(testEnvelope())
	if err != nil {
		t.Fatalf("toPublishing failed: %v", err)
	}
	if msg.MessageId != "evt-1" || msg.Type != "poll.vote_cast" || msg.DeliveryMode != amqp.Persistent {
		t.Fatalf("unexpected publishing %+v", msg)
	}
	if msg.Headers["partition_key"] != "lunch" {
		t.Fatalf("expected partition_key header, got %v", msg.Headers)
	}
	var decoded ports.EventEnvelope
	if err := json.Unmarshal(msg.Body, &decoded); err != nil {
		t.Fatalf("body is not an envelope: %v", err)
	}
	if decoded.PartitionKey != "lunch" {
		t.Fatalf("unexpected decoded body %+v", decoded)
	}
}

func TestHandleDeliveryAcksOnSuccess(t *testing.T) {
	msg, _ := toPublishing(testEnvelope())
	ack := &fakeAcknowledger{}
	sub := &Subscriber{logger: slog.Default()}

	var seen ports.EventEnvelope
	sub.handleDelivery(context.Background(), amqp.Delivery{Acknowledger: ack, Body: msg.Body}, "poll.vote_cast", "cg", func(_ context.Context, event ports.EventEnvelope) error {
		seen = event
		return nil
	})
	if ack.acked != 1 || ack.nacked != 0 {
		t.Fatalf("expected ack, got acked=%d nacked=%d", ack.acked, ack.nacked)
	}
	if seen.EventID != "evt-1" {
		t.Fatalf("handler saw %+v", seen)
	}
}

func TestHandleDeliveryRejectsFailures(t *testing.T) {
	sub := &Subscriber{logger: slog.Default()}

	bad := &fakeAcknowledger{}
	sub.handleDelivery(context.Background(), amqp.Delivery{Acknowledger: bad, Body: []byte("not json")}, "t", "cg", func(context.Context, ports.EventEnvelope) error {
		t.Fatalf("handler must not run for undecodable body")
		return nil
	})
	if bad.nacked != 1 || bad.requeue {
		t.Fatalf("expected nack without requeue, got %+v", bad)
	}

	msg, _ := toPublishing(testEnvelope())
	failing := &fakeAcknowledger{}
	sub.handleDelivery(context.Background(), amqp.Delivery{Acknowledger: failing, Body: msg.Body}, "t", "cg", func(context.Context, ports.EventEnvelope) error {
		return errors.New("poll lookup failed")
	})
	if failing.nacked != 1 || failing.acked != 0 {
		t.Fatalf("expected nack on handler error, got %+v", failing)
	}
}

func TestQueueName(t *testing.T) {
	if got := QueueName("poll-registry-live-tally-cg", "poll.closed"); got != "poll-registry-live-tally-cg.poll.closed" {
		t.Fatalf("unexpected queue name %q", got)
	}
	if got := QueueName(" ", "poll.closed"); got != "poll.closed" {
		t.Fatalf("unexpected queue name %q", got)
	}
}

func TestPerInstanceGroupsGetTransientQueues(t *testing.T) {
	sub := NewSubscriber(nil, "poll-registry.events", nil)
	sub.MarkTransient("poll-registry-live-tally-cg.api-7f9c")

	live := sub.queueSpec(" poll-registry-live-tally-cg.api-7f9c ")
	if live.durable || !live.autoDelete || !live.exclusive {
		t.Fatalf("per-instance queues must vanish with their consumer, got %+v", live)
	}
	shared := sub.queueSpec("poll-registry-audit-cg")
	if !shared.durable || shared.autoDelete || shared.exclusive {
		t.Fatalf("shared group queues must stay durable, got %+v", shared)
	}
}
