package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	application "ballotbox/contexts/governance/poll-registry/application"
	"ballotbox/contexts/governance/poll-registry/domain/entities"
	domainerrors "ballotbox/contexts/governance/poll-registry/domain/errors"
	"ballotbox/contexts/governance/poll-registry/ports"
)

// PollUseCase owns the write side of the registry. Each command authorizes
// its principal, then runs all reads and writes inside one Store.Update so a
// failed precondition leaves no partial state behind.
type PollUseCase struct {
	Store  ports.Store
	Auth   ports.Authorizer
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (uc PollUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}

func loadPoll(ctx context.Context, reader ports.StoreReader, pollID string) (entities.Poll, error) {
	raw, err := reader.Get(ctx, entities.PollKey(pollID))
	if err != nil {
		if errors.Is(err, domainerrors.ErrKeyNotFound) {
			return entities.Poll{}, domainerrors.ErrPollNotFound
		}
		return entities.Poll{}, err
	}
	return entities.DecodePoll(raw)
}

func savePoll(ctx context.Context, tx ports.StoreTx, poll entities.Poll) error {
	raw, err := entities.EncodePoll(poll)
	if err != nil {
		return err
	}
	return tx.Set(ctx, entities.PollKey(poll.PollID), raw)
}

// isRejection reports whether err is a domain precondition failure or a
// contention conflict the caller may retry, rather than an infrastructure
// fault.
func isRejection(err error) bool {
	switch {
	case errors.Is(err, domainerrors.ErrAlreadyExists),
		errors.Is(err, domainerrors.ErrPollNotFound),
		errors.Is(err, domainerrors.ErrPollClosed),
		errors.Is(err, domainerrors.ErrAlreadyVoted),
		errors.Is(err, domainerrors.ErrInvalidChoice),
		errors.Is(err, domainerrors.ErrNotCreator),
		errors.Is(err, domainerrors.ErrUnauthorized),
		errors.Is(err, domainerrors.ErrInvalidPollID),
		errors.Is(err, domainerrors.ErrInvalidIdentity),
		errors.Is(err, domainerrors.ErrTallyOverflow),
		errors.Is(err, domainerrors.ErrConflict):
		return true
	default:
		return false
	}
}

func (uc PollUseCase) appendEvent(
	ctx context.Context,
	tx ports.StoreTx,
	eventType string,
	pollID string,
	occurredAt time.Time,
	data any,
) error {
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newPollEnvelope(eventID, eventType, pollID, occurredAt, data)
	if err != nil {
		return err
	}
	return tx.AppendOutbox(ctx, envelope)
}

// reject logs a failed command at a level matching its cause and returns err
// unchanged.
func (uc PollUseCase) reject(
	logger *slog.Logger,
	operation string,
	err error,
	pollID string,
	principalKey string,
	principal entities.Identity,
) error {
	if isRejection(err) {
		logger.Warn("poll command rejected",
			"event", "poll_registry_"+operation+"_rejected",
			"module", application.ModuleName,
			"layer", "application",
			"poll_id", pollID,
			principalKey, principal.String(),
			"reason", err.Error(),
		)
		return err
	}
	logger.Error("poll command failed",
		"event", "poll_registry_"+operation+"_failed",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", pollID,
		principalKey, principal.String(),
		"error", err.Error(),
	)
	return err
}
