package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	pollregistry "ballotbox/contexts/governance/poll-registry"
	authadapter "ballotbox/contexts/governance/poll-registry/adapters/auth"
	pollhttp "ballotbox/contexts/governance/poll-registry/transport/http"
	"ballotbox/internal/platform/httpserver"
)

func newSignedServer(t *testing.T) *httptest.Server {
	t.Helper()
	module := pollregistry.NewInMemoryModule(authadapter.SignatureAuthorizer{}, nil, nil)
	server := httptest.NewServer(httpserver.New(module, nil, nil, "").Handler())
	t.Cleanup(server.Close)
	return server
}

// runCLI executes the root command the way main does and returns stdout.
// Flag variables are package globals, so they are reset before every run.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	globalFlags.server = ""
	globalFlags.keyFile = ""
	globalFlags.as = ""
	createTitle = ""
	keygenForce = false

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func keygen(t *testing.T, dir string, name string) (string, string) {
	t.Helper()
	path := filepath.Join(dir, name+".key")
	out, err := runCLI(t, "keygen", path)
	if err != nil {
		t.Fatalf("keygen %s failed: %v", name, err)
	}
	identity := strings.TrimSpace(out)
	if len(identity) != 64 {
		t.Fatalf("expected a hex public key identity, got %q", identity)
	}
	return path, identity
}

func TestSignedPollLifecycleThroughCLI(t *testing.T) {
	server := newSignedServer(t)
	dir := t.TempDir()
	aliceKey, alice := keygen(t, dir, "alice")
	bobKey, bob := keygen(t, dir, "bob")

	out, err := runCLI(t, "identity", "--key", aliceKey)
	if err != nil || strings.TrimSpace(out) != alice {
		t.Fatalf("identity printed %q %v, want %s", out, err, alice)
	}

	out, err = runCLI(t, "create", "lunch", "pizza", "tacos", "--title", "Where to?", "--server", server.URL, "--key", aliceKey)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	var created pollhttp.PollResponse
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("decode create output: %v (%s)", err, out)
	}
	if created.Creator != alice || created.Title != "Where to?" || !created.Active {
		t.Fatalf("unexpected poll %+v", created)
	}

	if _, err := runCLI(t, "vote", "lunch", "tacos", "--server", server.URL, "--key", bobKey); err != nil {
		t.Fatalf("vote failed: %v", err)
	}
	if _, err := runCLI(t, "vote", "lunch", "pizza", "--server", server.URL, "--key", bobKey); err == nil || !strings.Contains(err.Error(), "already_voted") {
		t.Fatalf("expected already_voted, got %v", err)
	}
	if _, err := runCLI(t, "close", "lunch", "--server", server.URL, "--key", bobKey); err == nil || !strings.Contains(err.Error(), "not_creator") {
		t.Fatalf("expected not_creator, got %v", err)
	}
	if _, err := runCLI(t, "close", "lunch", "--server", server.URL, "--key", aliceKey); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	out, err = runCLI(t, "result", "lunch", "--server", server.URL)
	if err != nil {
		t.Fatalf("result failed: %v", err)
	}
	var result pollhttp.ResultResponse
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode result output: %v (%s)", err, out)
	}
	if result.Active || result.Counts["tacos"] != 1 || result.TotalVotes != 1 {
		t.Fatalf("unexpected result %+v", result)
	}

	out, err = runCLI(t, "voted", "lunch", bob, "--server", server.URL)
	if err != nil {
		t.Fatalf("voted failed: %v", err)
	}
	var status pollhttp.VoterStatusResponse
	if err := json.Unmarshal([]byte(out), &status); err != nil || !status.Voted {
		t.Fatalf("expected bob to have voted, got %s %v", out, err)
	}
}

func TestUnsignedMutationsAreRefused(t *testing.T) {
	server := newSignedServer(t)

	if _, err := runCLI(t, "create", "lunch", "a", "--server", server.URL); err == nil || !strings.Contains(err.Error(), "--key or --as is required") {
		t.Fatalf("expected a missing credentials error, got %v", err)
	}
	// --as sends an unsigned identity, which a signature checking server refuses.
	if _, err := runCLI(t, "create", "lunch", "a", "--server", server.URL, "--as", "alice"); err == nil || !strings.Contains(err.Error(), "unauthorized") {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestKeygenRefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k.key")
	if _, err := runCLI(t, "keygen", path); err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	if _, err := runCLI(t, "keygen", path); err == nil || !strings.Contains(err.Error(), "--force") {
		t.Fatalf("expected overwrite refusal, got %v", err)
	}
	if _, err := runCLI(t, "keygen", path, "--force"); err != nil {
		t.Fatalf("keygen --force failed: %v", err)
	}
	if _, err := readKey(path); err != nil {
		t.Fatalf("written key does not parse: %v", err)
	}
}

func TestPollPathEscapesSegments(t *testing.T) {
	if got := pollPath("lunch", "votes"); got != "/v1/polls/lunch/votes" {
		t.Fatalf("unexpected path %q", got)
	}
	if got := pollPath("a b/c", "close"); got != "/v1/polls/a%20b%2Fc/close" {
		t.Fatalf("poll id must be escaped as one segment, got %q", got)
	}

	// An escaped slash reaches the poll route as one segment, so the server
	// answers with its own poll_not_found rather than an unmatched route.
	server := newSignedServer(t)
	if _, err := runCLI(t, "show", "bad/id", "--server", server.URL); err == nil || !strings.Contains(err.Error(), "poll_not_found") {
		t.Fatalf("expected poll_not_found for an escaped id, got %v", err)
	}
}

func TestParseKeyRejectsWrongLength(t *testing.T) {
	if _, err := parseKey("abcd"); err == nil {
		t.Fatalf("expected short seeds to be rejected")
	}
	if _, err := parseKey("not hex"); err == nil {
		t.Fatalf("expected non hex input to be rejected")
	}
}
