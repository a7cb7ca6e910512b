// Package domain defines the session aggregate: the durable record of a
// time-boxed attendance session and its denormalized roster.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// RosterEntry is a checked-in student as shown on the session roster. The
// roster is best-effort display state mirrored from the attendance ledger;
// the ledger remains the source of truth for who checked in.
type RosterEntry struct {
	StudentID   string
	StudentName string
	DeviceID    string
	CheckedInAt time.Time
}

// Session is a time-boxed attendance session. ExpiresAt is mutable through
// renewal; StartedAt is fixed at creation. Sessions are never hard-deleted:
// clearing attendance empties the roster, not the session.
type Session struct {
	ID         string
	CreatedBy  string
	CourseName string
	StartedAt  time.Time
	ExpiresAt  time.Time
	Roster     []RosterEntry
}

// Validate checks the session invariants: non-empty id, expiry after start,
// and at most one roster entry per student id.
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	if !s.ExpiresAt.After(s.StartedAt) {
		return errors.New("session expiry must be after its start")
	}
	seen := make(map[string]struct{}, len(s.Roster))
	for _, e := range s.Roster {
		if e.StudentID == "" {
			return errors.New("roster entry student id is required")
		}
		if _, dup := seen[e.StudentID]; dup {
			return fmt.Errorf("duplicate roster entry for student %s", e.StudentID)
		}
		seen[e.StudentID] = struct{}{}
	}
	return nil
}

// Expired reports whether the session is past its stored expiry at now.
// The check is strict: the session is still live at the expiry instant.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
