// Package signature verifies detached Ed25519 webhook signatures.
//
// The platform signs the canonical string "{webhook_url}:{raw_body}"
// with its private key and sends the signature base64-encoded in a
// request header. The relay verifies it against the platform's
// published public key before trusting any event payload.
//
// All verification failures collapse to ErrInvalidSignature so that
// responses never reveal whether decoding or the signature check
// itself failed.
package signature

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	// ErrInvalidSignature is returned for any verification failure.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrMissingSignature is returned when the signature header is empty.
	ErrMissingSignature = errors.New("signature header is required")
)

// Verifier checks webhook signatures against a fixed public key and
// webhook target URL. Construct once at startup; Verify is safe for
// concurrent use.
type Verifier struct {
	publicKey  ed25519.PublicKey
	webhookURL string
}

// New parses the base64-encoded Ed25519 public key and returns a
// Verifier bound to the externally-visible webhook URL.
func New(publicKeyB64, webhookURL string) (*Verifier, error) {
	key, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(key))
	}
	if webhookURL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	return &Verifier{
		publicKey:  ed25519.PublicKey(key),
		webhookURL: webhookURL,
	}, nil
}

// Verify checks the claimed base64 signature over the canonical string
// built from the webhook URL and the raw request body.
func (v *Verifier) Verify(body []byte, claimedSignatureB64 string) error {
	if claimedSignatureB64 == "" {
		return ErrMissingSignature
	}

	sig, err := base64.StdEncoding.DecodeString(claimedSignatureB64)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return ErrInvalidSignature
	}

	if !ed25519.Verify(v.publicKey, canonical(v.webhookURL, body), sig) {
		return ErrInvalidSignature
	}

	return nil
}

// canonical builds the signed message: "{webhook_url}:{raw_body}".
func canonical(webhookURL string, body []byte) []byte {
	msg := make([]byte, 0, len(webhookURL)+1+len(body))
	msg = append(msg, webhookURL...)
	msg = append(msg, ':')
	msg = append(msg, body...)
	return msg
}
