package commands

import (
	"errors"
	"fmt"
	"testing"

	domainerrors "ballotbox/contexts/governance/poll-registry/domain/errors"
)

func TestIsRejection(t *testing.T) {
	for _, err := range []error{
		domainerrors.ErrAlreadyVoted,
		domainerrors.ErrConflict,
		fmt.Errorf("store: %w", domainerrors.ErrConflict),
		errors.Join(domainerrors.ErrConflict, errors.New("context canceled")),
	} {
		if !isRejection(err) {
			t.Fatalf("expected %v to be logged as a rejection", err)
		}
	}
	if isRejection(errors.New("connection reset")) {
		t.Fatalf("infrastructure faults must not be treated as rejections")
	}
}
