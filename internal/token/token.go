// Package token implements the signed session-token wire format carried in
// QR payloads and check-in request bodies.
package token

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/handedalcali/qr-attendance/internal/security"
)

var (
	// ErrBadSignature is returned when a token's signature does not match
	// its contents. This is a tamper signal, not a lifecycle event.
	ErrBadSignature = errors.New("token: signature mismatch")
	// ErrExpired is returned when a well-formed, correctly signed token is
	// past its expiry. Clients recover by scanning a fresh code.
	ErrExpired = errors.New("token: expired")
)

// RosterSnapshot is an advisory attendance entry that can ride along inside
// a token for offline carriage. It is never authoritative; the ledger is.
type RosterSnapshot struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName,omitempty"`
	CheckedInAt int64  `json:"checkedInAt,omitempty"`
}

// Token is the signed triple rendered into a QR code. ExpiresAt is epoch
// milliseconds. Sig is the hex HMAC-SHA256 over CanonicalMessage.
type Token struct {
	SessionID  string           `json:"sessionId"`
	ExpiresAt  int64            `json:"expiresAt"`
	Sig        string           `json:"sig"`
	DeviceID   string           `json:"deviceId,omitempty"`
	Attendance []RosterSnapshot `json:"attendance,omitempty"`
}

// CanonicalMessage returns the string that gets signed for a
// (sessionID, expiresAt) pair: the pipe-joined id and epoch-millisecond
// expiry. Session ids use a fixed hex alphabet and the expiry is numeric, so
// the join is unambiguous without escaping. Any additional signed field must
// follow the same rule.
func CanonicalMessage(sessionID string, expiresAt int64) string {
	return sessionID + "|" + strconv.FormatInt(expiresAt, 10)
}

// Encode returns the JSON wire form of t, the text a client renders as a QR
// image.
func (t Token) Encode() (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Codec issues and verifies tokens with a process-wide signer.
type Codec struct {
	signer *security.Signer
}

// NewCodec returns a Codec backed by signer.
func NewCodec(signer *security.Signer) *Codec {
	return &Codec{signer: signer}
}

// Issue builds and signs a token for sessionID expiring at expiresAt.
func (c *Codec) Issue(sessionID string, expiresAt time.Time) Token {
	millis := expiresAt.UnixMilli()
	return Token{
		SessionID: sessionID,
		ExpiresAt: millis,
		Sig:       c.signer.Sign(CanonicalMessage(sessionID, millis)),
	}
}

// Verify checks t's signature, then its expiry against now. The two
// failures are reported distinctly: ErrBadSignature means the payload was
// tampered with, ErrExpired is ordinary session aging. Expiry is strict —
// a token is still valid at the instant it expires.
func (c *Codec) Verify(t Token, now time.Time) error {
	if !c.signer.Verify(CanonicalMessage(t.SessionID, t.ExpiresAt), t.Sig) {
		return ErrBadSignature
	}
	if now.UnixMilli() > t.ExpiresAt {
		return ErrExpired
	}
	return nil
}
