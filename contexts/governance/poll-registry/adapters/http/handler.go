package httpadapter

import (
	"context"
	"log/slog"
	"strings"

	application "ballotbox/contexts/governance/poll-registry/application"
	"ballotbox/contexts/governance/poll-registry/application/commands"
	"ballotbox/contexts/governance/poll-registry/application/queries"
	"ballotbox/contexts/governance/poll-registry/domain/entities"
	httptransport "ballotbox/contexts/governance/poll-registry/transport/http"
)

// Handler maps transport DTOs onto registry use cases. callerID is the
// identity the transport authenticated; a principal omitted from the body
// defaults to it.
type Handler struct {
	Polls   commands.PollUseCase
	Results queries.ResultUseCase
	Logger  *slog.Logger
}

func (h Handler) CreatePollHandler(
	ctx context.Context,
	callerID string,
	req httptransport.CreatePollRequest,
) (httptransport.PollResponse, error) {
	poll, err := h.Polls.CreatePoll(ctx, commands.CreatePollCommand{
		Creator: h.resolvePrincipal("create", req.PollID, req.Creator, callerID),
		PollID:  req.PollID,
		Title:   req.Title,
		Options: req.Options,
	})
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return mapPoll(poll), nil
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	callerID string,
	pollID string,
	req httptransport.CastVoteRequest,
) (httptransport.CastVoteResponse, error) {
	result, err := h.Polls.CastVote(ctx, commands.CastVoteCommand{
		Voter:  h.resolvePrincipal("vote", pollID, req.Voter, callerID),
		PollID: pollID,
		Choice: req.Choice,
	})
	if err != nil {
		return httptransport.CastVoteResponse{}, err
	}
	return httptransport.CastVoteResponse{
		PollID:     result.Record.PollID,
		Voter:      result.Record.Voter.String(),
		CastAt:     result.Record.CastAt,
		TotalVotes: result.Tally.Total(),
		Tally:      mapTally(result.Tally),
	}, nil
}

func (h Handler) ClosePollHandler(
	ctx context.Context,
	callerID string,
	pollID string,
	req httptransport.ClosePollRequest,
) (httptransport.PollResponse, error) {
	poll, err := h.Polls.ClosePoll(ctx, commands.ClosePollCommand{
		Creator: h.resolvePrincipal("close", pollID, req.Creator, callerID),
		PollID:  pollID,
	})
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return mapPoll(poll), nil
}

func (h Handler) ResultHandler(ctx context.Context, pollID string) (httptransport.ResultResponse, error) {
	result, err := h.Results.GetResult(ctx, pollID)
	if err != nil {
		return httptransport.ResultResponse{}, err
	}
	return httptransport.ResultResponse{
		PollID:     result.PollID,
		Active:     result.Active,
		TotalVotes: result.TotalVotes(),
		Tally:      mapTally(result.Tally),
		Counts:     result.Tally.AsMap(),
	}, nil
}

func (h Handler) PollHandler(ctx context.Context, pollID string) (httptransport.PollResponse, error) {
	poll, err := h.Results.GetPoll(ctx, pollID)
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return mapPoll(poll), nil
}

func (h Handler) VoterStatusHandler(ctx context.Context, pollID string, voter string) (httptransport.VoterStatusResponse, error) {
	voted, err := h.Results.HasVoted(ctx, pollID, entities.Identity(voter))
	if err != nil {
		return httptransport.VoterStatusResponse{}, err
	}
	return httptransport.VoterStatusResponse{
		PollID: pollID,
		Voter:  voter,
		Voted:  voted,
	}, nil
}

// resolvePrincipal prefers the body principal. One that differs from the
// authenticated caller is passed through for the authorizer to refuse, and
// logged here since it usually means a misbehaving client.
func (h Handler) resolvePrincipal(operation string, pollID string, fromBody string, callerID string) entities.Identity {
	caller := strings.TrimSpace(callerID)
	value := strings.TrimSpace(fromBody)
	if value == "" {
		return entities.Identity(caller)
	}
	if value != caller {
		application.ResolveLogger(h.Logger).Warn("request principal differs from caller",
			"event", "poll_registry_http_principal_mismatch",
			"module", application.ModuleName,
			"layer", "adapter",
			"operation", operation,
			"poll_id", pollID,
			"caller", caller,
			"principal", value,
		)
	}
	return entities.Identity(value)
}

func mapPoll(poll entities.Poll) httptransport.PollResponse {
	options := poll.Options
	if options == nil {
		options = []string{}
	}
	return httptransport.PollResponse{
		PollID:     poll.PollID,
		Creator:    poll.Creator.String(),
		Title:      poll.Title,
		Options:    options,
		Tally:      mapTally(poll.Tally),
		Active:     poll.Active,
		TotalVotes: poll.Tally.Total(),
		CreatedAt:  poll.CreatedAt,
		ClosedAt:   poll.ClosedAt,
	}
}

func mapTally(tally entities.Tally) []httptransport.OptionCount {
	items := make([]httptransport.OptionCount, 0, len(tally))
	for _, item := range tally {
		items = append(items, httptransport.OptionCount{
			Option: item.Option,
			Votes:  item.Votes,
		})
	}
	return items
}
