package entities

import (
	"encoding/json"
	"fmt"
)

type KeyKind string

const (
	KeyKindPoll       KeyKind = "poll"
	KeyKindVoteRecord KeyKind = "voter"
)

// StorageKey addresses one entry in the host store. It is either
// Poll(poll_id) or VoteRecord(poll_id, voter); Voter is empty for poll keys.
type StorageKey struct {
	Kind   KeyKind
	PollID string
	Voter  Identity
}

func PollKey(pollID string) StorageKey {
	return StorageKey{Kind: KeyKindPoll, PollID: pollID}
}

func VoteRecordKey(pollID string, voter Identity) StorageKey {
	return StorageKey{Kind: KeyKindVoteRecord, PollID: pollID, Voter: voter}
}

// String renders the key as a flat path, e.g. poll/lunch or voter/lunch/alice.
// Poll ids cannot contain '/', so the poll segment is unambiguous.
func (k StorageKey) String() string {
	switch k.Kind {
	case KeyKindVoteRecord:
		return fmt.Sprintf("%s/%s/%s", k.Kind, k.PollID, k.Voter)
	default:
		return fmt.Sprintf("%s/%s", KeyKindPoll, k.PollID)
	}
}

func EncodePoll(poll Poll) ([]byte, error) {
	return json.Marshal(poll)
}

func DecodePoll(raw []byte) (Poll, error) {
	var poll Poll
	if err := json.Unmarshal(raw, &poll); err != nil {
		return Poll{}, fmt.Errorf("decode poll record: %w", err)
	}
	return poll, nil
}

func EncodeVoteRecord(record VoteRecord) ([]byte, error) {
	return json.Marshal(record)
}

func DecodeVoteRecord(raw []byte) (VoteRecord, error) {
	var record VoteRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return VoteRecord{}, fmt.Errorf("decode vote record: %w", err)
	}
	return record, nil
}
