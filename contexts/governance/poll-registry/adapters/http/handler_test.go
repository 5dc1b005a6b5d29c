package httpadapter

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	authadapter "ballotbox/contexts/governance/poll-registry/adapters/auth"
	"ballotbox/contexts/governance/poll-registry/adapters/memory"
	"ballotbox/contexts/governance/poll-registry/application/commands"
	"ballotbox/contexts/governance/poll-registry/application/queries"
	"ballotbox/contexts/governance/poll-registry/domain/entities"
	domainerrors "ballotbox/contexts/governance/poll-registry/domain/errors"
	httptransport "ballotbox/contexts/governance/poll-registry/transport/http"
)

func newTestHandler(logs *bytes.Buffer) Handler {
	store := memory.NewStore()
	return Handler{
		Polls:   commands.PollUseCase{Store: store, Auth: authadapter.TrustedHeaderAuthorizer{}, Clock: store, IDGen: store},
		Results: queries.ResultUseCase{Store: store},
		Logger:  slog.New(slog.NewJSONHandler(logs, nil)),
	}
}

func callerContext(identity string) context.Context {
	return authadapter.WithCredentials(context.Background(), authadapter.Credentials{Identity: entities.Identity(identity)})
}

func TestPrincipalMismatchIsLoggedAndRefused(t *testing.T) {
	var logs bytes.Buffer
	h := newTestHandler(&logs)

	_, err := h.CreatePollHandler(callerContext("alice"), "alice", httptransport.CreatePollRequest{
		PollID:  "lunch",
		Creator: "mallory",
		Options: []string{"a"},
	})
	if !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if !strings.Contains(logs.String(), "poll_registry_http_principal_mismatch") || !strings.Contains(logs.String(), `"principal":"mallory"`) {
		t.Fatalf("expected a mismatch warning, got %s", logs.String())
	}
}

func TestMatchingOrOmittedPrincipalIsNotLogged(t *testing.T) {
	var logs bytes.Buffer
	h := newTestHandler(&logs)

	if _, err := h.CreatePollHandler(callerContext("alice"), "alice", httptransport.CreatePollRequest{
		PollID:  "lunch",
		Creator: "alice",
		Options: []string{"a"},
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	resp, err := h.CastVoteHandler(callerContext("bob"), "bob", "lunch", httptransport.CastVoteRequest{Choice: "a"})
	if err != nil || resp.Voter != "bob" {
		t.Fatalf("vote with omitted principal failed: %+v %v", resp, err)
	}
	if logs.Len() != 0 {
		t.Fatalf("expected no handler logs, got %s", logs.String())
	}
}
