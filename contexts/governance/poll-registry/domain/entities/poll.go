package entities

import (
	"math"
	"time"
	"unicode"
)

const (
	maxPollIDLength   = 32
	maxIdentityLength = 128
)

// Identity is an opaque account identifier compared by equality only.
type Identity string

func (i Identity) String() string {
	return string(i)
}

// Valid reports whether the identity is non-empty, bounded and free of
// whitespace or control characters.
func (i Identity) Valid() bool {
	if i == "" || len(i) > maxIdentityLength {
		return false
	}
	for _, r := range string(i) {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// ValidPollID reports whether id is a symbol: 1-32 characters of [A-Za-z0-9_].
func ValidPollID(id string) bool {
	if id == "" || len(id) > maxPollIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}

type OptionCount struct {
	Option string `json:"option"`
	Votes  uint32 `json:"votes"`
}

// Tally is the ordered option -> count mapping of a poll. Every label occurs
// once; the order is first occurrence in the poll's options.
type Tally []OptionCount

func NewTally(options []string) Tally {
	tally := make(Tally, 0, len(options))
	seen := make(map[string]struct{}, len(options))
	for _, option := range options {
		if _, ok := seen[option]; ok {
			continue
		}
		seen[option] = struct{}{}
		tally = append(tally, OptionCount{Option: option})
	}
	return tally
}

func (t Tally) Has(option string) bool {
	return t.index(option) >= 0
}

func (t Tally) Count(option string) uint32 {
	if idx := t.index(option); idx >= 0 {
		return t[idx].Votes
	}
	return 0
}

// Increment returns a copy of the tally with option bumped by one. ok is false
// when the option is unknown or its count would overflow.
func (t Tally) Increment(option string) (Tally, bool) {
	idx := t.index(option)
	if idx < 0 || t[idx].Votes == math.MaxUint32 {
		return t, false
	}
	next := t.Clone()
	next[idx].Votes++
	return next, true
}

func (t Tally) Total() uint64 {
	var total uint64
	for _, item := range t {
		total += uint64(item.Votes)
	}
	return total
}

func (t Tally) Options() []string {
	items := make([]string, 0, len(t))
	for _, item := range t {
		items = append(items, item.Option)
	}
	return items
}

func (t Tally) AsMap() map[string]uint32 {
	items := make(map[string]uint32, len(t))
	for _, item := range t {
		items[item.Option] = item.Votes
	}
	return items
}

func (t Tally) Clone() Tally {
	if t == nil {
		return nil
	}
	return append(Tally(nil), t...)
}

func (t Tally) index(option string) int {
	for idx, item := range t {
		if item.Option == option {
			return idx
		}
	}
	return -1
}

// Poll is the persisted state of one poll. Options keep the caller's list
// verbatim; Tally holds each distinct label once.
type Poll struct {
	PollID    string     `json:"poll_id"`
	Creator   Identity   `json:"creator"`
	Title     string     `json:"title"`
	Options   []string   `json:"options"`
	Tally     Tally      `json:"tally"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

func NewPoll(pollID string, creator Identity, title string, options []string, now time.Time) Poll {
	return Poll{
		PollID:    pollID,
		Creator:   creator,
		Title:     title,
		Options:   append([]string(nil), options...),
		Tally:     NewTally(options),
		Active:    true,
		CreatedAt: now.UTC(),
	}
}

func (p Poll) IsCreator(identity Identity) bool {
	return p.Creator == identity
}

// Close marks the poll inactive. The first close time is kept on re-close.
func (p Poll) Close(now time.Time) Poll {
	closed := p
	closed.Active = false
	if closed.ClosedAt == nil {
		closedAt := now.UTC()
		closed.ClosedAt = &closedAt
	}
	return closed
}

// VoteRecord marks that Voter has voted in PollID. The choice is not kept.
type VoteRecord struct {
	PollID string    `json:"poll_id"`
	Voter  Identity  `json:"voter"`
	CastAt time.Time `json:"cast_at"`
}
