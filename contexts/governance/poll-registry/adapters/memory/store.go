package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"ballotbox/contexts/governance/poll-registry/domain/entities"
	domainerrors "ballotbox/contexts/governance/poll-registry/domain/errors"
	"ballotbox/contexts/governance/poll-registry/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
	sequence  uint64
}

// Store is an in-process host store. Update holds the write lock for the
// whole callback and applies staged writes only when the callback succeeds.
type Store struct {
	mu sync.RWMutex

	entries  map[entities.StorageKey][]byte
	outbox   map[string]outboxRecord
	sequence uint64
}

func NewStore() *Store {
	return &Store{
		entries: make(map[entities.StorageKey][]byte),
		outbox:  make(map[string]outboxRecord),
	}
}

func (s *Store) View(_ context.Context, fn func(ports.StoreReader) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&txView{store: s})
}

func (s *Store) Update(_ context.Context, fn func(ports.StoreTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txView{
		store:  s,
		staged: make(map[entities.StorageKey][]byte),
	}
	if err := fn(tx); err != nil {
		return err
	}
	for key, value := range tx.staged {
		s.entries[key] = value
	}
	for _, message := range tx.outbox {
		s.sequence++
		s.outbox[message.OutboxID] = outboxRecord{message: message, sequence: s.sequence}
	}
	return nil
}

// Len returns the number of committed entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

type txView struct {
	store  *Store
	staged map[entities.StorageKey][]byte
	outbox []ports.OutboxMessage
}

func (t *txView) Has(_ context.Context, key entities.StorageKey) (bool, error) {
	if _, ok := t.staged[key]; ok {
		return true, nil
	}
	_, ok := t.store.entries[key]
	return ok, nil
}

func (t *txView) Get(_ context.Context, key entities.StorageKey) ([]byte, error) {
	if value, ok := t.staged[key]; ok {
		return append([]byte(nil), value...), nil
	}
	value, ok := t.store.entries[key]
	if !ok {
		return nil, domainerrors.ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

func (t *txView) Set(_ context.Context, key entities.StorageKey, value []byte) error {
	t.staged[key] = append([]byte(nil), value...)
	return nil
}

func (t *txView) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	t.outbox = append(t.outbox, ports.OutboxMessage{
		OutboxID:     outboxID,
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		CreatedAt:    createdAt,
	})
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	pending := make([]outboxRecord, 0, len(s.outbox))
	for _, record := range s.outbox {
		if !record.published {
			pending = append(pending, record)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].sequence < pending[j].sequence
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	items := make([]ports.OutboxMessage, 0, len(pending))
	for _, record := range pending {
		message := record.message
		message.Payload = append([]byte(nil), message.Payload...)
		items = append(items, message)
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	record.published = true
	s.outbox[strings.TrimSpace(outboxID)] = record
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
