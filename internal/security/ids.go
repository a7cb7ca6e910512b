package security

import (
	"crypto/rand"
	"encoding/hex"
)

// Session ids are 12 hex characters: short enough to type by hand when a
// scan fails, random enough that collisions are not a practical concern.
const sessionIDBytes = 6

// NewSessionID returns a fresh random session identifier.
func NewSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
