package http

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreatePollRequest struct {
	PollID  string   `json:"poll_id"`
	Title   string   `json:"title"`
	Options []string `json:"options"`
	Creator string   `json:"creator,omitempty"`
}

type OptionCount struct {
	Option string `json:"option"`
	Votes  uint32 `json:"votes"`
}

type PollResponse struct {
	PollID     string        `json:"poll_id"`
	Creator    string        `json:"creator"`
	Title      string        `json:"title"`
	Options    []string      `json:"options"`
	Tally      []OptionCount `json:"tally"`
	Active     bool          `json:"active"`
	TotalVotes uint64        `json:"total_votes"`
	CreatedAt  time.Time     `json:"created_at"`
	ClosedAt   *time.Time    `json:"closed_at,omitempty"`
}

type CastVoteRequest struct {
	Voter  string `json:"voter,omitempty"`
	Choice string `json:"choice"`
}

type CastVoteResponse struct {
	PollID     string        `json:"poll_id"`
	Voter      string        `json:"voter"`
	CastAt     time.Time     `json:"cast_at"`
	TotalVotes uint64        `json:"total_votes"`
	Tally      []OptionCount `json:"tally"`
}

type ClosePollRequest struct {
	Creator string `json:"creator,omitempty"`
}

type ResultResponse struct {
	PollID     string            `json:"poll_id"`
	Active     bool              `json:"active"`
	TotalVotes uint64            `json:"total_votes"`
	Tally      []OptionCount     `json:"tally"`
	Counts     map[string]uint32 `json:"counts"`
}

type VoterStatusResponse struct {
	PollID string `json:"poll_id"`
	Voter  string `json:"voter"`
	Voted  bool   `json:"voted"`
}
