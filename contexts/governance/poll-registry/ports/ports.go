package ports

import (
	"context"
	"time"

	"ballotbox/contexts/governance/poll-registry/domain/entities"
	contractsv1 "ballotbox/contracts/gen/events/v1"
)

// StoreReader is the read half of a host transaction.
// Get returns domain ErrKeyNotFound for a missing key.
type StoreReader interface {
	Has(ctx context.Context, key entities.StorageKey) (bool, error)
	Get(ctx context.Context, key entities.StorageKey) ([]byte, error)
}

// StoreTx is a host transaction. Writes and outbox rows become visible only
// when the surrounding Update callback returns nil.
type StoreTx interface {
	StoreReader
	Set(ctx context.Context, key entities.StorageKey, value []byte) error
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

// Store executes callbacks serializably against the host key-value store.
type Store interface {
	View(ctx context.Context, fn func(StoreReader) error) error
	Update(ctx context.Context, fn func(StoreTx) error) error
}

// Authorizer confirms that the current caller is allowed to act as identity.
type Authorizer interface {
	RequireAuth(ctx context.Context, identity entities.Identity) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxRepository lists pending rows in commit order. Two events of one poll
// never share a position, whatever the clock resolution.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

// TallyBroadcaster fans a poll's serialized result out to live listeners.
type TallyBroadcaster interface {
	Broadcast(pollID string, payload []byte)
}
