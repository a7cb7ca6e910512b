// Package service implements the session lifecycle: creation, token
// renewal, and attendance clearing.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	attdomain "github.com/handedalcali/qr-attendance/internal/attendance/domain"
	"github.com/handedalcali/qr-attendance/internal/security"
	"github.com/handedalcali/qr-attendance/internal/session/domain"
	"github.com/handedalcali/qr-attendance/internal/token"
)

// ErrNotFound is returned when the referenced session does not exist.
var ErrNotFound = errors.New("session not found")

// SessionRepo is the slice of the session repository the lifecycle needs.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	SetExpiry(ctx context.Context, id string, expiresAt time.Time) error
	ClearRoster(ctx context.Context, id string) error
}

// Ledger is the slice of the attendance repository the lifecycle needs.
type Ledger interface {
	DeleteBySession(ctx context.Context, sessionID string) error
	ListBySession(ctx context.Context, sessionID string) ([]*attdomain.Record, error)
}

// Service manages sessions and their tokens.
type Service struct {
	sessions   SessionRepo
	ledger     Ledger
	codec      *token.Codec
	defaultTTL time.Duration
	nowF       func() time.Time
}

// New returns a Service. defaultTTL applies when a caller passes a
// non-positive duration.
func New(sessions SessionRepo, ledger Ledger, codec *token.Codec, defaultTTL time.Duration) *Service {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return &Service{
		sessions:   sessions,
		ledger:     ledger,
		codec:      codec,
		defaultTTL: defaultTTL,
		nowF:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateResult is the outcome of CreateSession: the persisted session, its
// signed token, and the token's QR text form.
type CreateResult struct {
	Session *domain.Session
	Token   token.Token
	QRText  string
}

// CreateSession generates a fresh session, persists it with an empty
// roster, and issues its first token.
func (s *Service) CreateSession(ctx context.Context, duration time.Duration, createdBy, courseName string) (*CreateResult, error) {
	if duration <= 0 {
		duration = s.defaultTTL
	}
	id, err := security.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}
	now := s.nowF()
	sess := &domain.Session{
		ID:         id,
		CreatedBy:  strings.TrimSpace(createdBy),
		CourseName: strings.TrimSpace(courseName),
		StartedAt:  now,
		ExpiresAt:  now.Add(duration),
	}
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	tok := s.codec.Issue(id, sess.ExpiresAt)
	qr, err := tok.Encode()
	if err != nil {
		return nil, err
	}
	return &CreateResult{Session: sess, Token: tok, QRText: qr}, nil
}

// RenewResult is the outcome of RenewToken.
type RenewResult struct {
	ExpiresAt time.Time
	Token     token.Token
	QRText    string
}

// RenewToken extends the stored session expiry and reissues its token.
// Check-ins already recorded are untouched: renewal rotates liveness,
// never history.
func (s *Service) RenewToken(ctx context.Context, sessionID string, duration time.Duration) (*RenewResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if duration <= 0 {
		duration = s.defaultTTL
	}
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return nil, ErrNotFound
	}

	expiresAt := s.nowF().Add(duration)
	if err := s.sessions.SetExpiry(ctx, sessionID, expiresAt); err != nil {
		return nil, fmt.Errorf("set expiry: %w", err)
	}

	tok := s.codec.Issue(sessionID, expiresAt)
	qr, err := tok.Encode()
	if err != nil {
		return nil, err
	}
	return &RenewResult{ExpiresAt: expiresAt, Token: tok, QRText: qr}, nil
}

// ClearAttendance empties the session's roster and deletes its ledger
// records. The session itself, its start, and its expiry survive. Clearing
// an already-empty session succeeds silently.
func (s *Service) ClearAttendance(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return ErrNotFound
	}
	if err := s.sessions.ClearRoster(ctx, sessionID); err != nil {
		return fmt.Errorf("clear roster: %w", err)
	}
	if err := s.ledger.DeleteBySession(ctx, sessionID); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	return nil
}

// GetSession returns the stored session with its roster.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.sessions.GetByID(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Export returns the session's ledger records ordered by check-in time,
// the authoritative attendance list for download.
func (s *Service) Export(ctx context.Context, sessionID string) ([]*attdomain.Record, error) {
	sessionID = strings.TrimSpace(sessionID)
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return nil, ErrNotFound
	}
	records, err := s.ledger.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}
