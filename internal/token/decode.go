package token

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
)

var (
	// ErrMalformed is returned when a payload cannot be parsed in any
	// accepted shape.
	ErrMalformed = errors.New("token: malformed payload")
	// ErrMissingField is returned when a payload parses as an object but
	// lacks sessionId, expiresAt, or sig.
	ErrMissingField = errors.New("token: payload missing required field")
)

// Decoded is the tagged result of a decode: exactly one of Token or
// BareSessionID is set. A bare id carries no signature; callers that
// require provenance must reject it themselves.
type Decoded struct {
	Token         *Token
	BareSessionID string
}

// Decode parses a QR payload in any of the shapes clients send: a JSON
// object, a JSON string wrapping a token (percent-decoded first when it
// carries URL escapes), a scan URL with a payload= query parameter, or a
// bare session id. Parse attempts run in that order and stop at the first
// shape that fits.
func Decode(raw json.RawMessage) (Decoded, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Decoded{}, ErrMalformed
	}
	if trimmed[0] == '{' {
		return decodeObject(trimmed)
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		// Raw scanner output that was never JSON-quoted.
		s = string(trimmed)
	}
	return DecodeString(s)
}

// DecodeString parses the string form of a payload. See Decode.
func DecodeString(s string) (Decoded, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Decoded{}, ErrMalformed
	}
	if strings.ContainsRune(s, '%') {
		if unescaped, err := url.QueryUnescape(s); err == nil {
			s = strings.TrimSpace(unescaped)
		}
	}
	if strings.HasPrefix(s, "{") {
		return decodeObject([]byte(s))
	}
	if strings.Contains(s, "payload=") {
		if d, ok := decodePayloadURL(s); ok {
			return d, nil
		}
	}
	return Decoded{BareSessionID: s}, nil
}

// decodePayloadURL handles scan URLs of the form
// https://host/checkin?payload=%7B...%7D.
func decodePayloadURL(s string) (Decoded, bool) {
	u, err := url.Parse(s)
	if err != nil {
		return Decoded{}, false
	}
	p := strings.TrimSpace(u.Query().Get("payload"))
	if !strings.HasPrefix(p, "{") {
		return Decoded{}, false
	}
	d, err := decodeObject([]byte(p))
	if err != nil {
		return Decoded{}, false
	}
	return d, true
}

func decodeObject(b []byte) (Decoded, error) {
	var t Token
	if err := json.Unmarshal(b, &t); err != nil {
		return Decoded{}, ErrMalformed
	}
	t.SessionID = strings.TrimSpace(t.SessionID)
	t.Sig = strings.TrimSpace(t.Sig)
	if t.SessionID == "" || t.ExpiresAt == 0 || t.Sig == "" {
		return Decoded{}, ErrMissingField
	}
	return Decoded{Token: &t}, nil
}
