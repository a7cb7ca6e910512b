package repository

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/handedalcali/qr-attendance/internal/attendance/domain"
)

type ledgerKey struct {
	sessionID string
	studentID string
	deviceID  string
}

// MemoryRepository is an in-memory ledger for local development and tests.
// The mutex makes CreateUnique atomic, mirroring the database constraint.
type MemoryRepository struct {
	mu sync.Mutex
	m  map[ledgerKey]*domain.Record
}

// NewMemoryRepository returns an empty in-memory attendance repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: make(map[ledgerKey]*domain.Record)}
}

// Find returns the earliest record for the (session, student) pair, or nil.
func (r *MemoryRepository) Find(ctx context.Context, sessionID, studentID string) (*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *domain.Record
	for k, rec := range r.m {
		if k.sessionID != sessionID || k.studentID != studentID {
			continue
		}
		if found == nil || rec.RecordedAt.Before(found.RecordedAt) {
			found = rec
		}
	}
	return copyRecord(found), nil
}

// CreateUnique inserts a copy of rec, or returns ErrDuplicate when a record
// for the same key is already present.
func (r *MemoryRepository) CreateUnique(ctx context.Context, rec *domain.Record) error {
	key := ledgerKey{sessionID: rec.SessionID, studentID: rec.StudentID, deviceID: rec.DeviceID}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.m[key]; exists {
		return ErrDuplicate
	}
	r.m[key] = copyRecord(rec)
	return nil
}

// Update rewrites the stored record matching rec.ID.
func (r *MemoryRepository) Update(ctx context.Context, rec *domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, stored := range r.m {
		if stored.ID == rec.ID {
			// The device may change when an unbound record becomes bound;
			// re-key so the uniqueness key tracks the stored value.
			delete(r.m, k)
			k.deviceID = rec.DeviceID
			r.m[k] = copyRecord(rec)
			return nil
		}
	}
	return nil
}

// DeleteBySession removes every record for sessionID.
func (r *MemoryRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.m {
		if k.sessionID == sessionID {
			delete(r.m, k)
		}
	}
	return nil
}

// ListBySession returns copies of the session's records ordered by
// RecordedAt.
func (r *MemoryRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Record
	for k, rec := range r.m {
		if k.sessionID == sessionID {
			out = append(out, copyRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

func copyRecord(rec *domain.Record) *domain.Record {
	if rec == nil {
		return nil
	}
	out := *rec
	if rec.Meta != nil {
		out.Meta = maps.Clone(rec.Meta)
	}
	return &out
}
