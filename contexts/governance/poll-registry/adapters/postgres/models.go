package postgresadapter

import (
	"time"

	"ballotbox/contexts/governance/poll-registry/domain/entities"
	"ballotbox/contexts/governance/poll-registry/ports"
)

type entryModel struct {
	Kind      string    `gorm:"column:kind;primaryKey"`
	PollID    string    `gorm:"column:poll_id;primaryKey"`
	Voter     string    `gorm:"column:voter;primaryKey"`
	Value     []byte    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (entryModel) TableName() string {
	return "poll_registry_entries"
}

// entryModelFromKey flattens the key variant into columns. Poll rows store
// an empty voter so the composite primary key stays NOT NULL.
func entryModelFromKey(key entities.StorageKey, value []byte, now time.Time) entryModel {
	row := entryModel{
		Kind:      string(key.Kind),
		PollID:    key.PollID,
		Value:     append([]byte(nil), value...),
		UpdatedAt: now.UTC(),
	}
	if key.Kind == entities.KeyKindVoteRecord {
		row.Voter = key.Voter.String()
	}
	return row
}

func (m entryModel) key() entities.StorageKey {
	if entities.KeyKind(m.Kind) == entities.KeyKindVoteRecord {
		return entities.VoteRecordKey(m.PollID, entities.Identity(m.Voter))
	}
	return entities.PollKey(m.PollID)
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	// Sequence is assigned by the database at insert and orders the relay.
	Sequence     int64      `gorm:"column:sequence;autoIncrement;index"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "poll_registry_outbox"
}

func (m outboxModel) toMessage() ports.OutboxMessage {
	return ports.OutboxMessage{
		OutboxID:     m.OutboxID,
		EventType:    m.EventType,
		PartitionKey: m.PartitionKey,
		Payload:      append([]byte(nil), m.Payload...),
		CreatedAt:    m.CreatedAt.UTC(),
	}
}
