package entities

import (
	"math"
	"testing"
	"time"
)

func TestNewTallyKeepsFirstOccurrenceOrder(t *testing.T) {
	tally := NewTally([]string{"pizza", "tacos", "pizza", "sushi"})
	got := tally.Options()
	want := []string{"pizza", "tacos", "sushi"}
	if len(got) != len(want) {
		t.Fatalf("expected %d distinct options, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("option %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if tally.Total() != 0 {
		t.Fatalf("expected zero total, got %d", tally.Total())
	}
}

func TestTallyIncrementReturnsCopy(t *testing.T) {
	tally := NewTally([]string{"yes", "no"})
	next, ok := tally.Increment("yes")
	if !ok {
		t.Fatalf("expected increment to succeed")
	}
	if tally.Count("yes") != 0 {
		t.Fatalf("increment mutated the original tally")
	}
	if next.Count("yes") != 1 || next.Count("no") != 0 {
		t.Fatalf("unexpected counts %v", next.AsMap())
	}
	if _, ok := next.Increment("maybe"); ok {
		t.Fatalf("expected unknown option to be rejected")
	}
}

func TestTallyIncrementRefusesOverflow(t *testing.T) {
	tally := Tally{{Option: "yes", Votes: math.MaxUint32}}
	if _, ok := tally.Increment("yes"); ok {
		t.Fatalf("expected overflow to be rejected")
	}
	if tally.Total() != math.MaxUint32 {
		t.Fatalf("unexpected total %d", tally.Total())
	}
}

func TestEmptyOptionsAcceptNoChoice(t *testing.T) {
	poll := NewPoll("empty", "alice", "", nil, time.Now())
	if poll.Tally.Has("") || len(poll.Tally) != 0 {
		t.Fatalf("expected empty tally, got %v", poll.Tally)
	}
	if !poll.Active {
		t.Fatalf("new poll must be active")
	}
}

func TestPollCloseKeepsFirstCloseTime(t *testing.T) {
	created := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	poll := NewPoll("lunch", "alice", "Lunch", []string{"a"}, created)

	first := poll.Close(created.Add(time.Hour))
	second := first.Close(created.Add(2 * time.Hour))
	if first.Active || second.Active {
		t.Fatalf("expected closed poll")
	}
	if !second.ClosedAt.Equal(created.Add(time.Hour)) {
		t.Fatalf("expected first close time to be kept, got %v", second.ClosedAt)
	}
	if !poll.Active || poll.ClosedAt != nil {
		t.Fatalf("close mutated the original poll")
	}
}

func TestValidPollID(t *testing.T) {
	cases := map[string]bool{
		"lunch":                             true,
		"Poll_2026":                         true,
		"":                                  false,
		"has space":                         false,
		"slash/id":                          false,
		"abcdefghijklmnopqrstuvwxyz012345":  true,
		"abcdefghijklmnopqrstuvwxyz0123456": false,
	}
	for id, want := range cases {
		if got := ValidPollID(id); got != want {
			t.Fatalf("ValidPollID(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestIdentityValid(t *testing.T) {
	if !Identity("alice").Valid() {
		t.Fatalf("expected alice to be valid")
	}
	for _, bad := range []Identity{"", "two words", "tab\tbed", Identity(make([]byte, 129))} {
		if bad.Valid() {
			t.Fatalf("expected %q to be invalid", bad)
		}
	}
}

func TestStorageKeysAreDistinct(t *testing.T) {
	if got := PollKey("lunch").String(); got != "poll/lunch" {
		t.Fatalf("unexpected poll key %q", got)
	}
	if got := VoteRecordKey("lunch", "alice").String(); got != "voter/lunch/alice" {
		t.Fatalf("unexpected vote record key %q", got)
	}
	if PollKey("lunch") == VoteRecordKey("lunch", "") {
		t.Fatalf("poll and vote record keys must differ")
	}
}

func TestPollRecordRoundTripKeepsTallyOrder(t *testing.T) {
	poll := NewPoll("lunch", "alice", "Lunch", []string{"b", "a", "b"}, time.Now())
	poll.Tally, _ = poll.Tally.Increment("a")

	raw, err := EncodePoll(poll)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := DecodePoll(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Tally.Options()[0] != "b" || decoded.Tally.Count("a") != 1 {
		t.Fatalf("unexpected decoded tally %v", decoded.Tally)
	}
	if len(decoded.Options) != 3 {
		t.Fatalf("expected options stored verbatim, got %v", decoded.Options)
	}
}
