package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"ballotbox/contexts/governance/poll-registry/domain/entities"
	domainerrors "ballotbox/contexts/governance/poll-registry/domain/errors"
	"ballotbox/contexts/governance/poll-registry/ports"
)

func TestUpdateIsAllOrNothing(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	boom := errors.New("invalid choice")

	err := store.Update(ctx, func(tx ports.StoreTx) error {
		if err := tx.Set(ctx, entities.VoteRecordKey("lunch", "bob"), []byte("{}")); err != nil {
			return err
		}
		if err := tx.AppendOutbox(ctx, ports.EventEnvelope{EventID: "evt-1", EventType: "poll.vote_cast"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected no committed entries, got %d", store.Len())
	}
	pending, _ := store.ListPendingOutbox(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("expected no outbox rows, got %d", len(pending))
	}
}

func TestStagedWritesVisibleInsideUpdate(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.Update(ctx, func(tx ports.StoreTx) error {
		if err := tx.Set(ctx, entities.PollKey("lunch"), []byte("v1")); err != nil {
			return err
		}
		raw, err := tx.Get(ctx, entities.PollKey("lunch"))
		if err != nil || string(raw) != "v1" {
			t.Fatalf("expected staged read v1, got %q %v", raw, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	err = store.View(ctx, func(reader ports.StoreReader) error {
		if _, err := reader.Get(ctx, entities.PollKey("other")); !errors.Is(err, domainerrors.ErrKeyNotFound) {
			t.Fatalf("expected ErrKeyNotFound, got %v", err)
		}
		has, err := reader.Has(ctx, entities.PollKey("lunch"))
		if err != nil || !has {
			t.Fatalf("expected committed key, got %v %v", has, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
}

func TestOutboxListsInCommitOrderAndMarks(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	for _, id := range []string{"evt-3", "evt-1", "evt-2"} {
		eventID := id
		if err := store.Update(ctx, func(tx ports.StoreTx) error {
			return tx.AppendOutbox(ctx, ports.EventEnvelope{EventID: eventID, EventType: "poll.created", OccurredAt: time.Now()})
		}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	pending, err := store.ListPendingOutbox(ctx, 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(pending) != 2 || pending[0].OutboxID != "evt-3" || pending[1].OutboxID != "evt-1" {
		t.Fatalf("expected commit order, got %+v", pending)
	}
	if err := store.MarkOutboxPublished(ctx, "evt-3", time.Now()); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := store.MarkOutboxPublished(ctx, "missing", time.Now()); !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	pending, _ = store.ListPendingOutbox(ctx, 10)
	if len(pending) != 2 || pending[0].OutboxID != "evt-1" {
		t.Fatalf("unexpected pending after mark %+v", pending)
	}
}
