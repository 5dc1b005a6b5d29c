package redisadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"ballotbox/contexts/governance/poll-registry/domain/entities"
	domainerrors "ballotbox/contexts/governance/poll-registry/domain/errors"
	"ballotbox/contexts/governance/poll-registry/ports"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	defaultKeyPrefix   = "ballotbox:"
	defaultRetryBudget = 10 * time.Second
	minRetryBackoff    = 2 * time.Millisecond
	maxRetryBackoff    = 100 * time.Millisecond
)

type outboxRecord struct {
	OutboxID     string    `json:"outbox_id"`
	EventType    string    `json:"event_type"`
	PartitionKey string    `json:"partition_key"`
	Payload      []byte    `json:"payload"`
	CreatedAt    time.Time `json:"created_at"`
	Sequence     int64     `json:"sequence"`
}

// Store keeps every registry entry as a plain Redis string. Update watches
// each key it reads and applies buffered writes in one MULTI/EXEC, so a
// concurrent writer to any read key aborts and reruns the callback.
// Pending outbox ids live in a sorted set scored by a commit sequence taken
// from an INCRBY counter; payloads live in a hash.
type Store struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
	// retryBudget bounds how long Update keeps rerunning an aborted
	// transaction when ctx carries no earlier deadline.
	retryBudget time.Duration
}

func NewStore(client *redis.Client, prefix string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultKeyPrefix
	}
	return &Store{
		client:      client,
		prefix:      prefix,
		logger:      logger,
		retryBudget: defaultRetryBudget,
	}
}

func (s *Store) entryKey(key entities.StorageKey) string {
	return s.prefix + key.String()
}

func (s *Store) outboxPendingKey() string {
	return s.prefix + "outbox:pending"
}

func (s *Store) outboxPayloadKey() string {
	return s.prefix + "outbox:payload"
}

func (s *Store) outboxSequenceKey() string {
	return s.prefix + "outbox:seq"
}

func (s *Store) View(ctx context.Context, fn func(ports.StoreReader) error) error {
	return fn(&reader{store: s, cmd: s.client})
}

// Update reruns fn whenever a watched key changed before EXEC. Every aborted
// round means another writer committed, so contended callers back off with
// jitter and retry until ctx ends or the retry budget runs out.
func (s *Store) Update(ctx context.Context, fn func(ports.StoreTx) error) error {
	deadline := time.Now().Add(s.retryBudget)
	backoff := minRetryBackoff
	for attempt := 1; ; attempt++ {
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			tx := &txView{
				reader: reader{store: s, cmd: rtx, watch: rtx},
				staged: make(map[string][]byte),
			}
			if err := fn(tx); err != nil {
				return err
			}
			return s.commit(ctx, rtx, tx)
		})
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}

		wait := rand.N(backoff) + time.Millisecond
		if time.Now().Add(wait).After(deadline) {
			return s.conflict(attempt, nil)
		}
		if attempt%10 == 0 {
			s.logger.Warn("poll registry transaction contended",
				"event", "poll_registry_redis_tx_contended",
				"module", "governance/poll-registry",
				"layer", "adapter",
				"attempt", attempt,
			)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return s.conflict(attempt, ctx.Err())
		case <-timer.C:
		}
		backoff = min(backoff*2, maxRetryBackoff)
	}
}

func (s *Store) conflict(attempts int, cause error) error {
	s.logger.Warn("poll registry transaction gave up",
		"event", "poll_registry_redis_tx_gave_up",
		"module", "governance/poll-registry",
		"layer", "adapter",
		"attempts", attempts,
	)
	if cause != nil {
		return errors.Join(domainerrors.ErrConflict, cause)
	}
	return domainerrors.ErrConflict
}

func (s *Store) commit(ctx context.Context, rtx *redis.Tx, tx *txView) error {
	if len(tx.staged) == 0 && len(tx.outbox) == 0 {
		return nil
	}
	// Sequence numbers are reserved after every read is watched, so two
	// transactions touching the same poll commit in sequence order.
	var first int64
	if len(tx.outbox) > 0 {
		last, err := rtx.IncrBy(ctx, s.outboxSequenceKey(), int64(len(tx.outbox))).Result()
		if err != nil {
			return s.logError("poll_registry_redis_outbox_sequence_failed", err, "events", len(tx.outbox))
		}
		first = last - int64(len(tx.outbox)) + 1
	}
	_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, value := range tx.staged {
			pipe.Set(ctx, key, value, 0)
		}
		for idx, record := range tx.outbox {
			record.Sequence = first + int64(idx)
			raw, err := json.Marshal(record)
			if err != nil {
				return err
			}
			pipe.HSet(ctx, s.outboxPayloadKey(), record.OutboxID, raw)
			pipe.ZAdd(ctx, s.outboxPendingKey(), &redis.Z{
				Score:  float64(record.Sequence),
				Member: record.OutboxID,
			})
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		return s.logError("poll_registry_redis_commit_failed", err, "staged_keys", len(tx.staged))
	}
	return err
}

// keyReader is satisfied by both *redis.Client and *redis.Tx.
type keyReader interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

type reader struct {
	store *Store
	cmd   keyReader
	watch *redis.Tx
}

func (r *reader) Has(ctx context.Context, key entities.StorageKey) (bool, error) {
	redisKey := r.store.entryKey(key)
	if err := r.watchKey(ctx, redisKey); err != nil {
		return false, err
	}
	count, err := r.cmd.Exists(ctx, redisKey).Result()
	if err != nil {
		return false, r.store.logError("poll_registry_redis_has_failed", err, "key", redisKey)
	}
	return count > 0, nil
}

func (r *reader) Get(ctx context.Context, key entities.StorageKey) ([]byte, error) {
	redisKey := r.store.entryKey(key)
	if err := r.watchKey(ctx, redisKey); err != nil {
		return nil, err
	}
	value, err := r.cmd.Get(ctx, redisKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domainerrors.ErrKeyNotFound
		}
		return nil, r.store.logError("poll_registry_redis_get_failed", err, "key", redisKey)
	}
	return value, nil
}

func (r *reader) watchKey(ctx context.Context, redisKey string) error {
	if r.watch == nil {
		return nil
	}
	if err := r.watch.Watch(ctx, redisKey).Err(); err != nil {
		return r.store.logError("poll_registry_redis_watch_failed", err, "key", redisKey)
	}
	return nil
}

type txView struct {
	reader
	staged map[string][]byte
	outbox []outboxRecord
}

func (t *txView) Has(ctx context.Context, key entities.StorageKey) (bool, error) {
	if _, ok := t.staged[t.store.entryKey(key)]; ok {
		return true, nil
	}
	return t.reader.Has(ctx, key)
}

func (t *txView) Get(ctx context.Context, key entities.StorageKey) ([]byte, error) {
	if value, ok := t.staged[t.store.entryKey(key)]; ok {
		return append([]byte(nil), value...), nil
	}
	return t.reader.Get(ctx, key)
}

func (t *txView) Set(_ context.Context, key entities.StorageKey, value []byte) error {
	t.staged[t.store.entryKey(key)] = append([]byte(nil), value...)
	return nil
}

func (t *txView) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	record := outboxRecord{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if record.OutboxID == "" {
		record.OutboxID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	t.outbox = append(t.outbox, record)
	return nil
}

func (s *Store) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := s.client.ZRange(ctx, s.outboxPendingKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, s.logError("poll_registry_redis_list_pending_outbox_failed", err, "limit", limit)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	values, err := s.client.HMGet(ctx, s.outboxPayloadKey(), ids...).Result()
	if err != nil {
		return nil, s.logError("poll_registry_redis_load_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(ids))
	for idx, value := range values {
		raw, ok := value.(string)
		if !ok {
			return nil, s.logError("poll_registry_redis_outbox_payload_missing",
				fmt.Errorf("outbox payload missing for %s", ids[idx]), "outbox_id", ids[idx])
		}
		var record outboxRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, s.logError("poll_registry_redis_outbox_decode_failed", err, "outbox_id", ids[idx])
		}
		items = append(items, ports.OutboxMessage{
			OutboxID:     record.OutboxID,
			EventType:    record.EventType,
			PartitionKey: record.PartitionKey,
			Payload:      record.Payload,
			CreatedAt:    record.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(ctx context.Context, outboxID string, _ time.Time) error {
	outboxID = strings.TrimSpace(outboxID)
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRem(ctx, s.outboxPendingKey(), outboxID)
		pipe.HDel(ctx, s.outboxPayloadKey(), outboxID)
		return nil
	})
	if err != nil {
		return s.logError("poll_registry_redis_mark_outbox_published_failed", err, "outbox_id", outboxID)
	}
	if removed.Val() == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (s *Store) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "governance/poll-registry",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	s.logger.Error("poll registry redis operation failed", fields...)
	return err
}

var _ ports.Store = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
