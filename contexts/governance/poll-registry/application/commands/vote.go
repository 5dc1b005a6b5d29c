package commands

import (
	"context"

	application "ballotbox/contexts/governance/poll-registry/application"
	"ballotbox/contexts/governance/poll-registry/domain/entities"
	domainerrors "ballotbox/contexts/governance/poll-registry/domain/errors"
	"ballotbox/contexts/governance/poll-registry/ports"
	contractsv1 "ballotbox/contracts/gen/events/v1"
)

type CastVoteCommand struct {
	Voter  entities.Identity
	PollID string
	Choice string
}

// CastVoteResult carries the stored vote marker and the tally after the vote.
type CastVoteResult struct {
	Record entities.VoteRecord
	Tally  entities.Tally
}

// CastVote records one vote for choice. Checks run in a fixed order and the
// first failure wins: poll exists, poll active, voter has not voted, choice
// is an option. The vote marker and the updated poll commit together.
func (uc PollUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("vote cast started",
		"event", "poll_registry_vote_started",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", cmd.PollID,
		"voter", cmd.Voter.String(),
	)
	if !entities.ValidPollID(cmd.PollID) {
		return CastVoteResult{}, uc.reject(logger, "vote", domainerrors.ErrInvalidPollID, cmd.PollID, "voter", cmd.Voter)
	}
	if !cmd.Voter.Valid() {
		return CastVoteResult{}, uc.reject(logger, "vote", domainerrors.ErrInvalidIdentity, cmd.PollID, "voter", cmd.Voter)
	}
	if err := uc.Auth.RequireAuth(ctx, cmd.Voter); err != nil {
		return CastVoteResult{}, uc.reject(logger, "vote", err, cmd.PollID, "voter", cmd.Voter)
	}

	var result CastVoteResult
	err := uc.Store.Update(ctx, func(tx ports.StoreTx) error {
		poll, err := loadPoll(ctx, tx, cmd.PollID)
		if err != nil {
			return err
		}
		if !poll.Active {
			return domainerrors.ErrPollClosed
		}

		recordKey := entities.VoteRecordKey(cmd.PollID, cmd.Voter)
		voted, err := tx.Has(ctx, recordKey)
		if err != nil {
			return err
		}
		if voted {
			return domainerrors.ErrAlreadyVoted
		}

		if !poll.Tally.Has(cmd.Choice) {
			return domainerrors.ErrInvalidChoice
		}
		tally, ok := poll.Tally.Increment(cmd.Choice)
		if !ok {
			return domainerrors.ErrTallyOverflow
		}
		poll.Tally = tally

		now := uc.now()
		record := entities.VoteRecord{PollID: cmd.PollID, Voter: cmd.Voter, CastAt: now}
		raw, err := entities.EncodeVoteRecord(record)
		if err != nil {
			return err
		}
		if err := tx.Set(ctx, recordKey, raw); err != nil {
			return err
		}
		if err := savePoll(ctx, tx, poll); err != nil {
			return err
		}
		if err := uc.appendEvent(ctx, tx, EventPollVoteCast, poll.PollID, now, contractsv1.PollVoteCast{
			PollID:     poll.PollID,
			Voter:      cmd.Voter.String(),
			Choice:     cmd.Choice,
			TotalVotes: poll.Tally.Total(),
		}); err != nil {
			return err
		}
		result = CastVoteResult{Record: record, Tally: poll.Tally}
		return nil
	})
	if err != nil {
		return CastVoteResult{}, uc.reject(logger, "vote", err, cmd.PollID, "voter", cmd.Voter)
	}

	logger.Info("vote cast",
		"event", "poll_registry_vote_cast",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", cmd.PollID,
		"voter", cmd.Voter.String(),
		"total_votes", result.Tally.Total(),
	)
	return result, nil
}
