package queries

import (
	"context"
	"errors"
	"log/slog"

	application "ballotbox/contexts/governance/poll-registry/application"
	"ballotbox/contexts/governance/poll-registry/domain/entities"
	domainerrors "ballotbox/contexts/governance/poll-registry/domain/errors"
	"ballotbox/contexts/governance/poll-registry/ports"
)

// Result is a point-in-time snapshot of a poll's tally.
type Result struct {
	PollID string
	Active bool
	Tally  entities.Tally
}

func (r Result) TotalVotes() uint64 {
	return r.Tally.Total()
}

// ResultUseCase serves public reads. No authorization is required.
type ResultUseCase struct {
	Store  ports.Store
	Logger *slog.Logger
}

func (uc ResultUseCase) GetResult(ctx context.Context, pollID string) (Result, error) {
	poll, err := uc.GetPoll(ctx, pollID)
	if err != nil {
		return Result{}, err
	}
	return Result{
		PollID: poll.PollID,
		Active: poll.Active,
		Tally:  poll.Tally,
	}, nil
}

// GetPoll reports ErrPollNotFound for ids that are not valid symbols, since
// no stored poll can carry one.
func (uc ResultUseCase) GetPoll(ctx context.Context, pollID string) (entities.Poll, error) {
	if !entities.ValidPollID(pollID) {
		return entities.Poll{}, domainerrors.ErrPollNotFound
	}
	var poll entities.Poll
	err := uc.Store.View(ctx, func(reader ports.StoreReader) error {
		loaded, err := readPoll(ctx, reader, pollID)
		if err != nil {
			return err
		}
		poll = loaded
		return nil
	})
	if err != nil {
		return entities.Poll{}, uc.logFailure("poll_registry_get_poll_failed", err, pollID)
	}
	return poll, nil
}

// HasVoted reports whether voter holds a vote marker for an existing poll.
func (uc ResultUseCase) HasVoted(ctx context.Context, pollID string, voter entities.Identity) (bool, error) {
	if !entities.ValidPollID(pollID) {
		return false, domainerrors.ErrPollNotFound
	}
	if !voter.Valid() {
		return false, domainerrors.ErrInvalidIdentity
	}
	var voted bool
	err := uc.Store.View(ctx, func(reader ports.StoreReader) error {
		exists, err := reader.Has(ctx, entities.PollKey(pollID))
		if err != nil {
			return err
		}
		if !exists {
			return domainerrors.ErrPollNotFound
		}
		voted, err = reader.Has(ctx, entities.VoteRecordKey(pollID, voter))
		return err
	})
	if err != nil {
		return false, uc.logFailure("poll_registry_has_voted_failed", err, pollID)
	}
	return voted, nil
}

func readPoll(ctx context.Context, reader ports.StoreReader, pollID string) (entities.Poll, error) {
	raw, err := reader.Get(ctx, entities.PollKey(pollID))
	if err != nil {
		if errors.Is(err, domainerrors.ErrKeyNotFound) {
			return entities.Poll{}, domainerrors.ErrPollNotFound
		}
		return entities.Poll{}, err
	}
	return entities.DecodePoll(raw)
}

func (uc ResultUseCase) logFailure(event string, err error, pollID string) error {
	if errors.Is(err, domainerrors.ErrPollNotFound) {
		return err
	}
	application.ResolveLogger(uc.Logger).Error("poll query failed",
		"event", event,
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", pollID,
		"error", err.Error(),
	)
	return err
}
