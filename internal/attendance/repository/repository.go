// Package repository defines persistence for the attendance ledger.
package repository

import (
	"context"
	"errors"

	"github.com/handedalcali/qr-attendance/internal/attendance/domain"
)

// ErrDuplicate is returned by CreateUnique when a record already exists for
// the same (session, student, device) key. The store enforces the
// constraint atomically; two racing first check-ins see exactly one create
// succeed and one ErrDuplicate.
var ErrDuplicate = errors.New("attendance record already exists")

// Repository defines persistence for attendance records.
type Repository interface {
	// Find returns the record for (sessionID, studentID) regardless of
	// device, or nil when none exists. If several devices hold records for
	// the pair the earliest wins; the service treats that record's device
	// as the one on file.
	Find(ctx context.Context, sessionID, studentID string) (*domain.Record, error)
	// CreateUnique inserts the record, enforcing the uniqueness key in the
	// store. Returns ErrDuplicate on a key collision.
	CreateUnique(ctx context.Context, rec *domain.Record) error
	// Update rewrites the record identified by rec.ID.
	Update(ctx context.Context, rec *domain.Record) error
	// DeleteBySession removes every record for the session.
	DeleteBySession(ctx context.Context, sessionID string) error
	// ListBySession returns the session's records ordered by RecordedAt.
	ListBySession(ctx context.Context, sessionID string) ([]*domain.Record, error)
}
