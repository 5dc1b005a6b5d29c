package v1

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope wraps every event the poll registry emits. Data holds one of the
// payload types below, selected by EventType. Fields are only ever added.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

// PollCreated is the payload of poll.created.
type PollCreated struct {
	PollID  string   `json:"poll_id"`
	Creator string   `json:"creator"`
	Title   string   `json:"title"`
	Options []string `json:"options"`
}

// PollVoteCast is the payload of poll.vote_cast.
type PollVoteCast struct {
	PollID     string `json:"poll_id"`
	Voter      string `json:"voter"`
	Choice     string `json:"choice"`
	TotalVotes uint64 `json:"total_votes"`
}

// PollClosed is the payload of poll.closed. WasActive is false when the
// creator closed an already closed poll.
type PollClosed struct {
	PollID     string `json:"poll_id"`
	Creator    string `json:"creator"`
	WasActive  bool   `json:"was_active"`
	TotalVotes uint64 `json:"total_votes"`
}

// DecodeData unmarshals the envelope payload into out.
func (e Envelope) DecodeData(out any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s has no data", e.EventID)
	}
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", e.EventType, err)
	}
	return nil
}
