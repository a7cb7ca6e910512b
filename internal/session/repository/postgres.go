package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/handedalcali/qr-attendance/internal/session/domain"
)

// PostgresRepository persists sessions in the sessions and session_roster
// tables.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the session and its roster ordered by check-in time, or
// nil if no session exists for id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.QueryRowContext(ctx, `
		SELECT id, created_by, course_name, started_at, expires_at
		FROM sessions
		WHERE id = $1
	`, id).Scan(&s.ID, &s.CreatedBy, &s.CourseName, &s.StartedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT student_id, student_name, device_id, checked_in_at
		FROM session_roster
		WHERE session_id = $1
		ORDER BY checked_in_at
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var e domain.RosterEntry
		if err := rows.Scan(&e.StudentID, &e.StudentName, &e.DeviceID, &e.CheckedInAt); err != nil {
			return nil, err
		}
		s.Roster = append(s.Roster, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Create persists the session and any roster entries it carries.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, created_by, course_name, started_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, s.ID, s.CreatedBy, s.CourseName, s.StartedAt, s.ExpiresAt)
	if err != nil {
		return err
	}
	for _, e := range s.Roster {
		if err := r.UpsertRosterEntry(ctx, s.ID, e); err != nil {
			return err
		}
	}
	return nil
}

// SetExpiry replaces the stored expiry for id.
func (r *PostgresRepository) SetExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET expires_at = $2 WHERE id = $1
	`, id, expiresAt)
	return err
}

// UpsertRosterEntry inserts or replaces the roster entry for the entry's
// student. The (session_id, student_id) primary key keeps the roster free
// of duplicates.
func (r *PostgresRepository) UpsertRosterEntry(ctx context.Context, id string, e domain.RosterEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_roster (session_id, student_id, student_name, device_id, checked_in_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, student_id) DO UPDATE SET
			student_name = EXCLUDED.student_name,
			device_id = EXCLUDED.device_id,
			checked_in_at = EXCLUDED.checked_in_at
	`, id, e.StudentID, e.StudentName, e.DeviceID, e.CheckedInAt)
	return err
}

// ClearRoster removes every roster entry for id.
func (r *PostgresRepository) ClearRoster(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM session_roster WHERE session_id = $1
	`, id)
	return err
}
