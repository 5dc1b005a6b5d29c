package authadapter

import (
	"context"

	"ballotbox/contexts/governance/poll-registry/domain/entities"
)

const (
	HeaderIdentity  = "X-Identity"
	HeaderSignature = "X-Signature"
)

// Credentials is what the transport learned about the caller of the current
// request. Message is the canonical byte string the signature covers.
type Credentials struct {
	Identity  entities.Identity
	Message   []byte
	Signature []byte
}

type credentialsKey struct{}

func WithCredentials(ctx context.Context, creds Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, creds)
}

func CredentialsFrom(ctx context.Context) (Credentials, bool) {
	creds, ok := ctx.Value(credentialsKey{}).(Credentials)
	return creds, ok
}
