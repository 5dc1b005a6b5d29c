package authadapter

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"ballotbox/contexts/governance/poll-registry/domain/entities"
	domainerrors "ballotbox/contexts/governance/poll-registry/domain/errors"
)

// SignatureAuthorizer accepts a caller as identity when the identity is the
// hex encoded Ed25519 public key that signed the canonical request.
type SignatureAuthorizer struct {
	Logger *slog.Logger
}

func (a SignatureAuthorizer) RequireAuth(ctx context.Context, identity entities.Identity) error {
	creds, ok := CredentialsFrom(ctx)
	if !ok || creds.Identity != identity {
		return a.deny(identity, "identity_mismatch")
	}
	publicKey, err := PublicKeyFromIdentity(identity)
	if err != nil {
		return a.deny(identity, "malformed_public_key")
	}
	if len(creds.Signature) != ed25519.SignatureSize || !ed25519.Verify(publicKey, creds.Message, creds.Signature) {
		return a.deny(identity, "bad_signature")
	}
	return nil
}

func (a SignatureAuthorizer) deny(identity entities.Identity, reason string) error {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("signature authorization denied",
		"event", "poll_registry_auth_denied",
		"module", "governance/poll-registry",
		"layer", "adapter",
		"identity", identity.String(),
		"reason", reason,
	)
	return domainerrors.ErrUnauthorized
}

func IdentityFromPublicKey(publicKey ed25519.PublicKey) entities.Identity {
	return entities.Identity(hex.EncodeToString(publicKey))
}

func PublicKeyFromIdentity(identity entities.Identity) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(identity.String()))
	if err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("identity must encode %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// CanonicalRequest is METHOD, path and hex(sha256(body)) joined by newlines.
func CanonicalRequest(method string, path string, body []byte) []byte {
	digest := sha256.Sum256(body)
	var buf bytes.Buffer
	buf.WriteString(strings.ToUpper(method))
	buf.WriteByte('\n')
	buf.WriteString(path)
	buf.WriteByte('\n')
	buf.WriteString(hex.EncodeToString(digest[:]))
	return buf.Bytes()
}

// SignRequest returns the identity and base64 signature headers for a request.
func SignRequest(privateKey ed25519.PrivateKey, method string, path string, body []byte) (string, string) {
	publicKey := privateKey.Public().(ed25519.PublicKey)
	signature := ed25519.Sign(privateKey, CanonicalRequest(method, path, body))
	return IdentityFromPublicKey(publicKey).String(), base64.StdEncoding.EncodeToString(signature)
}

func DecodeSignature(value string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.TrimSpace(value))
}
