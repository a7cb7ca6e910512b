package repository

import (
	"context"
	"testing"
	"time"

	"github.com/handedalcali/qr-attendance/internal/session/domain"
)

func newStoredSession(t *testing.T, r *MemoryRepository) *domain.Session {
	t.Helper()
	now := time.Now().UTC()
	s := &domain.Session{
		ID:        "abc123def456",
		CreatedBy: "teacher",
		StartedAt: now,
		ExpiresAt: now.Add(10 * time.Minute),
	}
	if err := r.Create(context.Background(), s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return s
}

func TestMemoryRepository_GetByIDMissing(t *testing.T) {
	r := NewMemoryRepository()
	got, err := r.GetByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing session, got %+v", got)
	}
}

func TestMemoryRepository_CreateAndGetCopies(t *testing.T) {
	r := NewMemoryRepository()
	s := newStoredSession(t, r)

	got, err := r.GetByID(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.CreatedBy != "teacher" {
		t.Fatalf("unexpected session %+v", got)
	}

	// Mutating the returned value must not affect the store.
	got.Roster = append(got.Roster, domain.RosterEntry{StudentID: "42"})
	again, _ := r.GetByID(context.Background(), s.ID)
	if len(again.Roster) != 0 {
		t.Fatal("store leaked a shared roster slice")
	}
}

func TestMemoryRepository_SetExpiry(t *testing.T) {
	r := NewMemoryRepository()
	s := newStoredSession(t, r)
	later := s.ExpiresAt.Add(30 * time.Minute)

	if err := r.SetExpiry(context.Background(), s.ID, later); err != nil {
		t.Fatalf("SetExpiry: %v", err)
	}
	got, _ := r.GetByID(context.Background(), s.ID)
	if !got.ExpiresAt.Equal(later) {
		t.Fatalf("expiry not updated: %v", got.ExpiresAt)
	}
	if !got.StartedAt.Equal(s.StartedAt) {
		t.Fatal("StartedAt must not change on renewal")
	}
}

func TestMemoryRepository_UpsertRosterEntryReplaces(t *testing.T) {
	r := NewMemoryRepository()
	s := newStoredSession(t, r)
	ctx := context.Background()
	now := time.Now().UTC()

	first := domain.RosterEntry{StudentID: "42", StudentName: "Ada", CheckedInAt: now}
	if err := r.UpsertRosterEntry(ctx, s.ID, first); err != nil {
		t.Fatalf("UpsertRosterEntry: %v", err)
	}
	second := first
	second.StudentName = "Ada L."
	second.CheckedInAt = now.Add(time.Second)
	if err := r.UpsertRosterEntry(ctx, s.ID, second); err != nil {
		t.Fatalf("UpsertRosterEntry: %v", err)
	}

	got, _ := r.GetByID(ctx, s.ID)
	if len(got.Roster) != 1 {
		t.Fatalf("expected one roster entry, got %d", len(got.Roster))
	}
	if got.Roster[0].StudentName != "Ada L." {
		t.Fatalf("entry not replaced: %+v", got.Roster[0])
	}
}

func TestMemoryRepository_ClearRosterKeepsSession(t *testing.T) {
	r := NewMemoryRepository()
	s := newStoredSession(t, r)
	ctx := context.Background()
	_ = r.UpsertRosterEntry(ctx, s.ID, domain.RosterEntry{StudentID: "42", StudentName: "Ada"})

	if err := r.ClearRoster(ctx, s.ID); err != nil {
		t.Fatalf("ClearRoster: %v", err)
	}
	got, _ := r.GetByID(ctx, s.ID)
	if got == nil {
		t.Fatal("session must survive a roster clear")
	}
	if len(got.Roster) != 0 {
		t.Fatalf("roster not cleared: %+v", got.Roster)
	}
}
