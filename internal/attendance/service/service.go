// Package service implements the attendance-write state machine: token and
// liveness checks followed by the at-most-once recording rule.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	attdomain "github.com/handedalcali/qr-attendance/internal/attendance/domain"
	"github.com/handedalcali/qr-attendance/internal/attendance/repository"
	sessiondomain "github.com/handedalcali/qr-attendance/internal/session/domain"
	"github.com/handedalcali/qr-attendance/internal/token"
)

// Sentinel errors surfaced by MarkAttendance; the transport maps them to
// status codes. Anything else is a storage failure wrapped with context.
var (
	ErrValidation     = errors.New("missing session or student id")
	ErrInvalidToken   = errors.New("invalid token")
	ErrSessionExpired = errors.New("session expired")
	ErrNotFound       = errors.New("session not found")
	ErrDeviceConflict = errors.New("attendance already recorded from another device")
	ErrDuplicate      = errors.New("attendance already recorded")
)

// SessionRepo is the slice of the session repository the service needs.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	UpsertRosterEntry(ctx context.Context, id string, e sessiondomain.RosterEntry) error
}

// Ledger is the slice of the attendance repository the service needs.
type Ledger interface {
	Find(ctx context.Context, sessionID, studentID string) (*attdomain.Record, error)
	CreateUnique(ctx context.Context, rec *attdomain.Record) error
	Update(ctx context.Context, rec *attdomain.Record) error
}

// Input carries one check-in submission. QRPayload is the raw token payload
// when the client scanned a code; SessionID may be supplied directly
// instead. Meta is passed through to the record's diagnostic bag.
type Input struct {
	SessionID string
	QRPayload json.RawMessage
	StudentID string
	Name      string
	DeviceID  string
	Meta      map[string]string
}

// Status reports how a check-in was recorded.
type Status string

const (
	// StatusCheckedIn means a first record was created for the student.
	StatusCheckedIn Status = "checked_in"
	// StatusUpdated means a legitimate resubmission refreshed an existing
	// record (page reload, corrected name).
	StatusUpdated Status = "updated"
)

// Result is a successful check-in outcome.
type Result struct {
	Status Status
	Record *attdomain.Record
}

// Service applies the at-most-once attendance rule. Correctness under
// concurrent submissions rests on the ledger's uniqueness constraint, not
// on any in-process locking.
type Service struct {
	sessions      SessionRepo
	ledger        Ledger
	codec         *token.Codec
	deviceBinding bool
	nowF          func() time.Time
}

// New returns a Service. deviceBinding ties a student's attendance to the
// first device that submitted it.
func New(sessions SessionRepo, ledger Ledger, codec *token.Codec, deviceBinding bool) *Service {
	return &Service{
		sessions:      sessions,
		ledger:        ledger,
		codec:         codec,
		deviceBinding: deviceBinding,
		nowF:          func() time.Time { return time.Now().UTC() },
	}
}

// MarkAttendance records a student's check-in for a session.
//
// A supplied token must decode and verify, but token verification is
// layered on top of the mandatory liveness check against the stored
// session: the token proves provenance at issuance time, while the stored
// expiry is authoritative for current liveness. A bare session id without a
// token is accepted as long as the stored session is live.
func (s *Service) MarkAttendance(ctx context.Context, in Input) (*Result, error) {
	studentID := strings.TrimSpace(in.StudentID)
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = studentID
	}
	sessionID := strings.TrimSpace(in.SessionID)
	deviceID := strings.TrimSpace(in.DeviceID)
	now := s.nowF()

	if len(in.QRPayload) > 0 {
		dec, err := token.Decode(in.QRPayload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		switch {
		case dec.Token != nil:
			if sessionID == "" {
				sessionID = dec.Token.SessionID
			}
			if deviceID == "" {
				deviceID = strings.TrimSpace(dec.Token.DeviceID)
			}
			if err := s.codec.Verify(*dec.Token, now); err != nil {
				if errors.Is(err, token.ErrExpired) {
					return nil, ErrSessionExpired
				}
				return nil, ErrInvalidToken
			}
		case sessionID == "":
			sessionID = dec.BareSessionID
		}
	}

	if sessionID == "" || studentID == "" {
		return nil, ErrValidation
	}

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return nil, ErrNotFound
	}
	// The stored expiry, not the token's copy, decides liveness: the token
	// may be stale after a renewal, and a bare-id submission has no token
	// at all.
	if sess.Expired(now) {
		return nil, ErrSessionExpired
	}

	existing, err := s.ledger.Find(ctx, sessionID, studentID)
	if err != nil {
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	if existing != nil {
		return s.resubmit(ctx, existing, name, deviceID, in.Meta, now)
	}

	rec := &attdomain.Record{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		StudentID:   studentID,
		StudentName: name,
		DeviceID:    s.boundDevice(deviceID),
		RecordedAt:  now,
		Meta:        in.Meta,
	}
	if err := s.ledger.CreateUnique(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost the race against a concurrent first check-in for the
			// same key. Re-read and fall back to the resubmission branch
			// instead of surfacing the constraint violation.
			existing, rerr := s.ledger.Find(ctx, sessionID, studentID)
			if rerr != nil {
				return nil, fmt.Errorf("re-read attendance: %w", rerr)
			}
			if existing == nil {
				return nil, ErrDuplicate
			}
			return s.resubmit(ctx, existing, name, deviceID, in.Meta, now)
		}
		return nil, fmt.Errorf("create attendance: %w", err)
	}

	s.mirrorRoster(ctx, sessionID, studentID, name, rec.DeviceID, now)
	return &Result{Status: StatusCheckedIn, Record: rec}, nil
}

// resubmit handles a student who already has a record in the session: a
// repeat from the device on file updates name and timestamp in place, any
// other device is rejected.
func (s *Service) resubmit(ctx context.Context, existing *attdomain.Record, name, deviceID string, meta map[string]string, now time.Time) (*Result, error) {
	if s.deviceBinding && existing.DeviceID != "" && existing.DeviceID != deviceID {
		return nil, ErrDeviceConflict
	}

	updated := *existing
	updated.StudentName = name
	updated.RecordedAt = now
	if s.deviceBinding && updated.DeviceID == "" {
		// A record written while binding was off binds to the first device
		// that resubmits.
		updated.DeviceID = deviceID
	}
	if len(meta) > 0 {
		updated.Meta = meta
	}
	if err := s.ledger.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("update attendance: %w", err)
	}

	s.mirrorRoster(ctx, updated.SessionID, updated.StudentID, name, updated.DeviceID, now)
	return &Result{Status: StatusUpdated, Record: &updated}, nil
}

// mirrorRoster copies the check-in onto the session's display roster. The
// mirror is best effort: the ledger already holds the truth, so a failure
// here is logged, not surfaced.
func (s *Service) mirrorRoster(ctx context.Context, sessionID, studentID, name, deviceID string, now time.Time) {
	entry := sessiondomain.RosterEntry{
		StudentID:   studentID,
		StudentName: name,
		DeviceID:    deviceID,
		CheckedInAt: now,
	}
	if err := s.sessions.UpsertRosterEntry(ctx, sessionID, entry); err != nil {
		log.Printf("roster mirror failed for session %s student %s: %v", sessionID, studentID, err)
	}
}

// boundDevice returns the device part of the write key: the submitted
// device when binding is enabled, empty otherwise.
func (s *Service) boundDevice(deviceID string) string {
	if !s.deviceBinding {
		return ""
	}
	return deviceID
}
