// Package security provides the HMAC signer and random identifiers backing
// the session-token protocol.
package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrSecretMissing is returned when a Signer is constructed without a secret.
// Callers must treat it as fatal at startup, never as a per-request failure.
var ErrSecretMissing = errors.New("signer: secret missing")

// Signer produces and verifies HMAC-SHA256 hex signatures over canonical
// message strings. The same (secret, message) pair always yields the same
// signature; rotating the secret invalidates every outstanding token, which
// is acceptable because tokens are short-lived.
type Signer struct {
	secret []byte
}

// NewSigner returns a Signer keyed with secret.
func NewSigner(secret string) (*Signer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrSecretMissing
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign returns the hex-encoded HMAC-SHA256 digest of the UTF-8 bytes of
// message.
func (s *Signer) Sign(message string) string {
	m := hmac.New(sha256.New, s.secret)
	_, _ = m.Write([]byte(message))
	return hex.EncodeToString(m.Sum(nil))
}

// Verify recomputes the signature for message and compares it against sig in
// constant time. It returns false for any mismatch, including malformed hex;
// it never fails for malformed input.
func (s *Signer) Verify(message, sig string) bool {
	provided, err := hex.DecodeString(strings.TrimSpace(sig))
	if err != nil {
		return false
	}
	m := hmac.New(sha256.New, s.secret)
	_, _ = m.Write([]byte(message))
	return hmac.Equal(m.Sum(nil), provided)
}
