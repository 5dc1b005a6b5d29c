package errors

import "errors"

var (
	ErrAlreadyExists   = errors.New("poll already exists")
	ErrPollNotFound    = errors.New("poll not found")
	ErrPollClosed      = errors.New("voting is closed")
	ErrAlreadyVoted    = errors.New("voter already voted in this poll")
	ErrInvalidChoice   = errors.New("invalid voting choice")
	ErrNotCreator      = errors.New("only creator can close poll")
	ErrUnauthorized    = errors.New("caller is not authorized for identity")
	ErrInvalidPollID   = errors.New("invalid poll id")
	ErrInvalidIdentity = errors.New("invalid identity")
	ErrTallyOverflow   = errors.New("option tally overflow")
	ErrKeyNotFound     = errors.New("storage key not found")
	ErrConflict        = errors.New("poll registry write conflict")
)
