package workers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	application "ballotbox/contexts/governance/poll-registry/application"
	"ballotbox/contexts/governance/poll-registry/application/commands"
	"ballotbox/contexts/governance/poll-registry/application/queries"
	"ballotbox/contexts/governance/poll-registry/domain/entities"
	"ballotbox/contexts/governance/poll-registry/ports"
)

const defaultTallyFeedCG = "poll-registry-live-tally-cg"

type ResultReader interface {
	GetResult(ctx context.Context, pollID string) (queries.Result, error)
}

// LiveTally is the message pushed to live feed listeners.
type LiveTally struct {
	PollID     string                 `json:"poll_id"`
	Active     bool                   `json:"active"`
	TotalVotes uint64                 `json:"total_votes"`
	Tally      []entities.OptionCount `json:"tally"`
}

func EncodeLiveTally(result queries.Result) ([]byte, error) {
	tally := []entities.OptionCount(result.Tally.Clone())
	if tally == nil {
		tally = []entities.OptionCount{}
	}
	return json.Marshal(LiveTally{
		PollID:     result.PollID,
		Active:     result.Active,
		TotalVotes: result.TotalVotes(),
		Tally:      tally,
	})
}

// TallyBroadcaster reacts to vote and close events by reading the current
// result and pushing it to the poll's live listeners.
type TallyBroadcaster struct {
	Subscriber    ports.EventSubscriber
	Results       ResultReader
	Broadcaster   ports.TallyBroadcaster
	ConsumerGroup string
	Disabled      bool
	Logger        *slog.Logger
}

func (b TallyBroadcaster) Start(ctx context.Context) error {
	logger := application.ResolveLogger(b.Logger)
	if b.Disabled {
		logger.Info("live tally feed disabled by configuration",
			"event", "poll_registry_live_tally_disabled",
			"module", application.ModuleName,
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(b.ConsumerGroup)
	if group == "" {
		group = defaultTallyFeedCG
	}
	for _, topic := range []string{commands.EventPollVoteCast, commands.EventPollClosed} {
		if err := b.Subscriber.Subscribe(ctx, topic, group, b.Handle); err != nil {
			logger.Error("live tally subscribe failed",
				"event", "poll_registry_live_tally_subscribe_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"topic", topic,
				"consumer_group", group,
				"error", err.Error(),
			)
			return err
		}
	}
	logger.Info("live tally subscriptions active",
		"event", "poll_registry_live_tally_started",
		"module", application.ModuleName,
		"layer", "worker",
		"consumer_group", group,
	)
	return nil
}

func (b TallyBroadcaster) Handle(ctx context.Context, event ports.EventEnvelope) error {
	pollID := strings.TrimSpace(event.PartitionKey)
	if pollID == "" {
		var data struct {
			PollID string `json:"poll_id"`
		}
		if err := event.DecodeData(&data); err != nil {
			return err
		}
		pollID = strings.TrimSpace(data.PollID)
	}
	if pollID == "" {
		return errors.New("event carries no poll id")
	}

	result, err := b.Results.GetResult(ctx, pollID)
	if err != nil {
		return err
	}
	payload, err := EncodeLiveTally(result)
	if err != nil {
		return err
	}
	b.Broadcaster.Broadcast(pollID, payload)

	application.ResolveLogger(b.Logger).Debug("live tally broadcast",
		"event", "poll_registry_live_tally_broadcast",
		"module", application.ModuleName,
		"layer", "worker",
		"poll_id", pollID,
		"event_type", event.EventType,
		"total_votes", result.TotalVotes(),
	)
	return nil
}
