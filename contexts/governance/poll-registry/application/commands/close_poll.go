package commands

import (
	"context"

	application "ballotbox/contexts/governance/poll-registry/application"
	"ballotbox/contexts/governance/poll-registry/domain/entities"
	domainerrors "ballotbox/contexts/governance/poll-registry/domain/errors"
	"ballotbox/contexts/governance/poll-registry/ports"
	contractsv1 "ballotbox/contracts/gen/events/v1"
)

type ClosePollCommand struct {
	Creator entities.Identity
	PollID  string
}

// ClosePoll deactivates a poll. Only the stored creator may close it; closing
// an already closed poll succeeds and leaves the tally untouched.
func (uc PollUseCase) ClosePoll(ctx context.Context, cmd ClosePollCommand) (entities.Poll, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("poll close started",
		"event", "poll_registry_close_started",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", cmd.PollID,
		"creator", cmd.Creator.String(),
	)
	if !entities.ValidPollID(cmd.PollID) {
		return entities.Poll{}, uc.reject(logger, "close", domainerrors.ErrInvalidPollID, cmd.PollID, "creator", cmd.Creator)
	}
	if !cmd.Creator.Valid() {
		return entities.Poll{}, uc.reject(logger, "close", domainerrors.ErrInvalidIdentity, cmd.PollID, "creator", cmd.Creator)
	}
	if err := uc.Auth.RequireAuth(ctx, cmd.Creator); err != nil {
		return entities.Poll{}, uc.reject(logger, "close", err, cmd.PollID, "creator", cmd.Creator)
	}

	var closed entities.Poll
	err := uc.Store.Update(ctx, func(tx ports.StoreTx) error {
		poll, err := loadPoll(ctx, tx, cmd.PollID)
		if err != nil {
			return err
		}
		if !poll.IsCreator(cmd.Creator) {
			return domainerrors.ErrNotCreator
		}

		now := uc.now()
		wasActive := poll.Active
		poll = poll.Close(now)
		if err := savePoll(ctx, tx, poll); err != nil {
			return err
		}
		if err := uc.appendEvent(ctx, tx, EventPollClosed, poll.PollID, now, contractsv1.PollClosed{
			PollID:     poll.PollID,
			Creator:    poll.Creator.String(),
			WasActive:  wasActive,
			TotalVotes: poll.Tally.Total(),
		}); err != nil {
			return err
		}
		closed = poll
		return nil
	})
	if err != nil {
		return entities.Poll{}, uc.reject(logger, "close", err, cmd.PollID, "creator", cmd.Creator)
	}

	logger.Info("poll closed",
		"event", "poll_registry_poll_closed",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", closed.PollID,
		"creator", closed.Creator.String(),
		"total_votes", closed.Tally.Total(),
	)
	return closed, nil
}
