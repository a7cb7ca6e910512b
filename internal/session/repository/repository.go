// Package repository defines persistence for sessions and their rosters.
package repository

import (
	"context"
	"time"

	"github.com/handedalcali/qr-attendance/internal/session/domain"
)

// Repository defines persistence for sessions. Update operations on a
// missing session are no-ops; callers that need existence guarantees check
// GetByID first.
type Repository interface {
	// GetByID returns the session for id with its roster, or nil if not
	// found. It returns an error only for storage failures, never for
	// missing rows.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// Create persists a new session. The session must pass Validate.
	Create(ctx context.Context, s *domain.Session) error
	// SetExpiry replaces the stored expiry. The roster is untouched.
	SetExpiry(ctx context.Context, id string, expiresAt time.Time) error
	// UpsertRosterEntry inserts or replaces the roster entry for the
	// entry's student, keeping at most one entry per student id.
	UpsertRosterEntry(ctx context.Context, id string, e domain.RosterEntry) error
	// ClearRoster removes every roster entry. The session row survives.
	ClearRoster(ctx context.Context, id string) error
}
