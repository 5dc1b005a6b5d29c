package postgresadapter

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ballotbox/contexts/governance/poll-registry/domain/entities"
	domainerrors "ballotbox/contexts/governance/poll-registry/domain/errors"
	"ballotbox/contexts/governance/poll-registry/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
	maxTxAttempts         = 3
	pollLockPrefix        = "poll_registry:"
)

// Store keeps registry entries in one table keyed by (kind, poll_id, voter).
// Update runs at READ COMMITTED and takes a transaction-scoped advisory lock
// per poll before touching any of its keys, so writers to the same poll queue
// behind each other instead of aborting. The poll row is also read FOR UPDATE.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewStore(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:     db,
		logger: logger,
	}
}

func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&entryModel{}, &outboxModel{}); err != nil {
		return s.logError("poll_registry_repo_migrate_failed", err)
	}
	return nil
}

func (s *Store) View(ctx context.Context, fn func(ports.StoreReader) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txView{db: tx, store: s})
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	return mapTxError(err)
}

// Update reruns fn on deadlocks and unique violations up to maxTxAttempts
// times. fn must not have side effects outside the transaction.
func (s *Store) Update(ctx context.Context, fn func(ports.StoreTx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(&txView{db: tx, store: s, write: true, locked: make(map[string]bool)})
		}, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
		if err == nil || !isRetryable(err) || ctx.Err() != nil {
			break
		}
		s.logger.Warn("poll registry transaction retry",
			"event", "poll_registry_repo_tx_retry",
			"module", "governance/poll-registry",
			"layer", "adapter",
			"attempt", attempt,
			"error", err.Error(),
		)
	}
	return mapTxError(err)
}

type txView struct {
	db    *gorm.DB
	store *Store
	write bool
	// locked holds the poll ids whose advisory lock this transaction owns.
	locked map[string]bool
}

// lockPoll serializes writers of one poll, including a create racing another
// create for a row that does not exist yet. The lock is released on commit
// or rollback.
func (t *txView) lockPoll(key entities.StorageKey) error {
	if !t.write || t.locked[key.PollID] {
		return nil
	}
	if err := t.db.Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", pollLockPrefix+key.PollID).Error; err != nil {
		return t.store.txError("poll_registry_repo_lock_failed", err, key)
	}
	t.locked[key.PollID] = true
	return nil
}

func (t *txView) Has(_ context.Context, key entities.StorageKey) (bool, error) {
	if err := t.lockPoll(key); err != nil {
		return false, err
	}
	var count int64
	err := t.db.Model(&entryModel{}).
		Where("kind = ? AND poll_id = ? AND voter = ?", string(key.Kind), key.PollID, key.Voter.String()).
		Count(&count).
		Error
	if err != nil {
		return false, t.store.txError("poll_registry_repo_has_failed", err, key)
	}
	return count > 0, nil
}

func (t *txView) Get(_ context.Context, key entities.StorageKey) ([]byte, error) {
	if err := t.lockPoll(key); err != nil {
		return nil, err
	}
	query := t.db
	if t.write && key.Kind == entities.KeyKindPoll {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row entryModel
	err := query.
		Where("kind = ? AND poll_id = ? AND voter = ?", string(key.Kind), key.PollID, key.Voter.String()).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrKeyNotFound
		}
		return nil, t.store.txError("poll_registry_repo_get_failed", err, key)
	}
	return append([]byte(nil), row.Value...), nil
}

func (t *txView) Set(_ context.Context, key entities.StorageKey, value []byte) error {
	if err := t.lockPoll(key); err != nil {
		return err
	}
	row := entryModelFromKey(key, value, time.Now().UTC())
	create := t.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "kind"}, {Name: "poll_id"}, {Name: "voter"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":      row.Value,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		return t.store.txError("poll_registry_repo_set_failed", create.Error, key)
	}
	return nil
}

func (t *txView) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return t.store.logError("poll_registry_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		if isRetryable(create.Error) {
			return create.Error
		}
		return t.store.logError("poll_registry_repo_append_outbox_insert_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	return nil
}

func (s *Store) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := s.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("sequence ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, s.logError("poll_registry_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toMessage())
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return s.logError("poll_registry_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

// txError logs unexpected failures; serialization conflicts are returned
// silently so Update can retry them.
func (s *Store) txError(event string, err error, key entities.StorageKey) error {
	if isRetryable(err) {
		return err
	}
	return s.logError(event, err,
		"key_kind", string(key.Kind),
		"poll_id", key.PollID,
		"voter", key.Voter.String(),
	)
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
	s.logger.Error("poll registry repository operation failed", fields...)
	return err
}

func mapTxError(err error) error {
	if err == nil {
		return nil
	}
	if isRetryable(err) {
		return domainerrors.ErrConflict
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "23505":
		return true
	default:
		return false
	}
}

var _ ports.Store = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
