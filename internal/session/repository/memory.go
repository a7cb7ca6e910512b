package repository

import (
	"context"
	"sync"
	"time"

	"github.com/handedalcali/qr-attendance/internal/session/domain"
)

// MemoryRepository is an in-memory Repository for local development and
// tests. It hands out copies, so callers never share roster slices with the
// store.
type MemoryRepository struct {
	mu sync.RWMutex
	m  map[string]*domain.Session
}

// NewMemoryRepository returns an empty in-memory session repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: make(map[string]*domain.Session)}
}

// GetByID returns a copy of the stored session, or nil if absent.
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	return copySession(s), nil
}

// Create stores a copy of s.
func (r *MemoryRepository) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[s.ID] = copySession(s)
	return nil
}

// SetExpiry replaces the stored expiry; a missing session is a no-op.
func (r *MemoryRepository) SetExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok {
		s.ExpiresAt = expiresAt
	}
	return nil
}

// UpsertRosterEntry inserts or replaces the entry for its student id.
func (r *MemoryRepository) UpsertRosterEntry(ctx context.Context, id string, e domain.RosterEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[id]
	if !ok {
		return nil
	}
	for i := range s.Roster {
		if s.Roster[i].StudentID == e.StudentID {
			s.Roster[i] = e
			return nil
		}
	}
	s.Roster = append(s.Roster, e)
	return nil
}

// ClearRoster empties the roster; the session survives.
func (r *MemoryRepository) ClearRoster(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok {
		s.Roster = nil
	}
	return nil
}

func copySession(s *domain.Session) *domain.Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Roster = append([]domain.RosterEntry(nil), s.Roster...)
	return &out
}
