package authadapter

import (
	"context"

	"ballotbox/contexts/governance/poll-registry/domain/entities"
	domainerrors "ballotbox/contexts/governance/poll-registry/domain/errors"
)

// TrustedHeaderAuthorizer is used behind a gateway that has already
// authenticated the caller and forwards the identity header.
type TrustedHeaderAuthorizer struct{}

func (TrustedHeaderAuthorizer) RequireAuth(ctx context.Context, identity entities.Identity) error {
	creds, ok := CredentialsFrom(ctx)
	if !ok || creds.Identity == "" || creds.Identity != identity {
		return domainerrors.ErrUnauthorized
	}
	return nil
}
