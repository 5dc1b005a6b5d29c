package commands

import (
	"encoding/json"
	"time"

	"ballotbox/contexts/governance/poll-registry/ports"
)

const (
	EventPollCreated  = "poll.created"
	EventPollVoteCast = "poll.vote_cast"
	EventPollClosed   = "poll.closed"
)

func newPollEnvelope(
	eventID string,
	eventType string,
	pollID string,
	occurredAt time.Time,
	data any,
) (ports.EventEnvelope, error) {
	// Partitioned by poll so every consumer sees a poll's events in order.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "poll-registry",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "poll_id",
		PartitionKey:     pollID,
		Data:             payload,
	}, nil
}
