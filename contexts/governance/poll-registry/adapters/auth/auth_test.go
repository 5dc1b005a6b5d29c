package authadapter

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"

	"ballotbox/contexts/governance/poll-registry/domain/entities"
	domainerrors "ballotbox/contexts/governance/poll-registry/domain/errors"
)

func signedContext(t *testing.T, privateKey ed25519.PrivateKey, method string, path string, body []byte) (context.Context, entities.Identity) {
	t.Helper()
	identity, signature := SignRequest(privateKey, method, path, body)
	raw, err := DecodeSignature(signature)
	if err != nil {
		t.Fatalf("decode signature failed: %v", err)
	}
	ctx := WithCredentials(context.Background(), Credentials{
		Identity:  entities.Identity(identity),
		Message:   CanonicalRequest(method, path, body),
		Signature: raw,
	})
	return ctx, entities.Identity(identity)
}

func TestSignatureAuthorizerAcceptsSignedRequest(t *testing.T) {
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key failed: %v", err)
	}
	ctx, identity := signedContext(t, privateKey, "POST", "/v1/polls", []byte(`{"poll_id":"lunch"}`))

	if err := (SignatureAuthorizer{}).RequireAuth(ctx, identity); err != nil {
		t.Fatalf("expected signed request to pass, got %v", err)
	}
}

func TestSignatureAuthorizerRejectsTampering(t *testing.T) {
	_, privateKey, _ := ed25519.GenerateKey(rand.Reader)
	otherPublic, _, _ := ed25519.GenerateKey(rand.Reader)
	ctx, identity := signedContext(t, privateKey, "POST", "/v1/polls/lunch/votes", []byte(`{"choice":"a"}`))
	auth := SignatureAuthorizer{}

	if err := auth.RequireAuth(ctx, IdentityFromPublicKey(otherPublic)); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("expected identity mismatch to fail, got %v", err)
	}

	creds, _ := CredentialsFrom(ctx)
	creds.Message = CanonicalRequest("POST", "/v1/polls/lunch/votes", []byte(`{"choice":"b"}`))
	tampered := WithCredentials(context.Background(), creds)
	if err := auth.RequireAuth(tampered, identity); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("expected tampered body to fail, got %v", err)
	}

	if err := auth.RequireAuth(context.Background(), identity); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("expected missing credentials to fail, got %v", err)
	}

	plain := WithCredentials(context.Background(), Credentials{Identity: "alice"})
	if err := auth.RequireAuth(plain, "alice"); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("expected non-key identity to fail, got %v", err)
	}
}

func TestPublicKeyIdentityRoundTrip(t *testing.T) {
	publicKey, _, _ := ed25519.GenerateKey(rand.Reader)
	identity := IdentityFromPublicKey(publicKey)
	if !identity.Valid() || len(identity) != 64 {
		t.Fatalf("unexpected identity %q", identity)
	}
	decoded, err := PublicKeyFromIdentity(identity)
	if err != nil || !decoded.Equal(publicKey) {
		t.Fatalf("round trip failed: %v", err)
	}
	if _, err := PublicKeyFromIdentity("abcd"); err == nil {
		t.Fatalf("expected short key to fail")
	}
}

func TestCanonicalRequestNormalizesMethod(t *testing.T) {
	a := CanonicalRequest("post", "/v1/polls", []byte("{}"))
	b := CanonicalRequest("POST", "/v1/polls", []byte("{}"))
	if string(a) != string(b) {
		t.Fatalf("method case must not change the canonical form")
	}
	if string(CanonicalRequest("POST", "/v1/polls", nil)) == string(b) {
		t.Fatalf("body must change the canonical form")
	}
}

func TestTrustedHeaderAuthorizer(t *testing.T) {
	ctx := WithCredentials(context.Background(), Credentials{Identity: "alice"})
	auth := TrustedHeaderAuthorizer{}
	if err := auth.RequireAuth(ctx, "alice"); err != nil {
		t.Fatalf("expected alice to pass, got %v", err)
	}
	if err := auth.RequireAuth(ctx, "bob"); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("expected bob to fail, got %v", err)
	}
	if err := auth.RequireAuth(context.Background(), "alice"); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("expected missing header to fail, got %v", err)
	}
}
