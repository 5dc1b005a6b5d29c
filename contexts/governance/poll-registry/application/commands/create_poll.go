package commands

import (
	"context"

	application "ballotbox/contexts/governance/poll-registry/application"
	"ballotbox/contexts/governance/poll-registry/domain/entities"
	domainerrors "ballotbox/contexts/governance/poll-registry/domain/errors"
	"ballotbox/contexts/governance/poll-registry/ports"
	contractsv1 "ballotbox/contracts/gen/events/v1"
)

type CreatePollCommand struct {
	Creator entities.Identity
	PollID  string
	Title   string
	Options []string
}

// CreatePoll registers a new active poll with a zero tally for every distinct
// option. Options are stored as given: duplicates collapse into one tally
// entry and an empty list produces a poll that accepts no votes.
func (uc PollUseCase) CreatePoll(ctx context.Context, cmd CreatePollCommand) (entities.Poll, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("poll create started",
		"event", "poll_registry_create_started",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", cmd.PollID,
		"creator", cmd.Creator.String(),
	)
	if !entities.ValidPollID(cmd.PollID) {
		return entities.Poll{}, uc.reject(logger, "create", domainerrors.ErrInvalidPollID, cmd.PollID, "creator", cmd.Creator)
	}
	if !cmd.Creator.Valid() {
		return entities.Poll{}, uc.reject(logger, "create", domainerrors.ErrInvalidIdentity, cmd.PollID, "creator", cmd.Creator)
	}
	if err := uc.Auth.RequireAuth(ctx, cmd.Creator); err != nil {
		return entities.Poll{}, uc.reject(logger, "create", err, cmd.PollID, "creator", cmd.Creator)
	}

	var created entities.Poll
	err := uc.Store.Update(ctx, func(tx ports.StoreTx) error {
		exists, err := tx.Has(ctx, entities.PollKey(cmd.PollID))
		if err != nil {
			return err
		}
		if exists {
			return domainerrors.ErrAlreadyExists
		}

		now := uc.now()
		poll := entities.NewPoll(cmd.PollID, cmd.Creator, cmd.Title, cmd.Options, now)
		if err := savePoll(ctx, tx, poll); err != nil {
			return err
		}
		if err := uc.appendEvent(ctx, tx, EventPollCreated, poll.PollID, now, contractsv1.PollCreated{
			PollID:  poll.PollID,
			Creator: poll.Creator.String(),
			Title:   poll.Title,
			Options: poll.Options,
		}); err != nil {
			return err
		}
		created = poll
		return nil
	})
	if err != nil {
		return entities.Poll{}, uc.reject(logger, "create", err, cmd.PollID, "creator", cmd.Creator)
	}

	logger.Info("poll created",
		"event", "poll_registry_poll_created",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", created.PollID,
		"creator", created.Creator.String(),
		"option_count", len(created.Tally),
	)
	return created, nil
}
