package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/handedalcali/qr-attendance/internal/attendance/domain"
)

// Postgres unique_violation error code.
const uniqueViolation = "23505"

// PostgresRepository persists attendance records in the attendance table,
// whose (session_id, student_id, device_id) unique constraint backs the
// at-most-once guarantee.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an attendance repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Find returns the earliest record for the (session, student) pair, or nil
// when the student has no record in the session.
func (r *PostgresRepository) Find(ctx context.Context, sessionID, studentID string) (*domain.Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, student_id, student_name, device_id, recorded_at, meta
		FROM attendance
		WHERE session_id = $1 AND student_id = $2
		ORDER BY recorded_at
		LIMIT 1
	`, sessionID, studentID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// CreateUnique inserts rec. A unique-constraint violation is reported as
// ErrDuplicate; the insert itself is the atomicity point, never a prior
// existence check.
func (r *PostgresRepository) CreateUnique(ctx context.Context, rec *domain.Record) error {
	meta, err := marshalMeta(rec.Meta)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO attendance (id, session_id, student_id, student_name, device_id, recorded_at, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.SessionID, rec.StudentID, rec.StudentName, rec.DeviceID, rec.RecordedAt, meta)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

// Update rewrites the mutable fields of the record identified by rec.ID.
func (r *PostgresRepository) Update(ctx context.Context, rec *domain.Record) error {
	meta, err := marshalMeta(rec.Meta)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE attendance
		SET student_name = $2, device_id = $3, recorded_at = $4, meta = $5
		WHERE id = $1
	`, rec.ID, rec.StudentName, rec.DeviceID, rec.RecordedAt, meta)
	return err
}

// DeleteBySession removes every record for sessionID.
func (r *PostgresRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM attendance WHERE session_id = $1
	`, sessionID)
	return err
}

// ListBySession returns the session's records ordered by check-in time.
func (r *PostgresRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, student_id, student_name, device_id, recorded_at, meta
		FROM attendance
		WHERE session_id = $1
		ORDER BY recorded_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*domain.Record, error) {
	var rec domain.Record
	var meta []byte
	if err := s.Scan(&rec.ID, &rec.SessionID, &rec.StudentID, &rec.StudentName, &rec.DeviceID, &rec.RecordedAt, &meta); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &rec.Meta); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

func marshalMeta(meta map[string]string) ([]byte, error) {
	if meta == nil {
		meta = map[string]string{}
	}
	return json.Marshal(meta)
}
