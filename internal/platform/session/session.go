package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role is the session namespace. Employee and patient sessions use separate
// cookies and never share rows.
type Role string

const (
	RoleEmployee Role = "employee"
	RolePatient  Role = "patient"
)

// Cookie names, one per role.
const (
	EmployeeCookie = "mho_emp_session"
	PatientCookie  = "mho_pat_session"
)

// CookieName returns the cookie carrying sessions of the given role.
func CookieName(role Role) string {
	if role == RolePatient {
		return PatientCookie
	}
	return EmployeeCookie
}

var (
	ErrNoSession = errors.New("no session")
	ErrExpired   = errors.New("session expired")
)

// Session is one row in the session store. A session may be anonymous
// (IdentityID nil) while a password reset is in flight; everything else
// requires an authenticated session.
type Session struct {
	ID           uuid.UUID  `db:"id"`
	Role         Role       `db:"role"`
	IdentityID   *uuid.UUID `db:"identity_id"`
	EmployeeRole string     `db:"employee_role"`
	CSRFToken    string     `db:"csrf_token"`
	OTPCode      *string    `db:"otp_code"`
	OTPTarget    *uuid.UUID `db:"otp_target"`
	OTPIssuedAt  *time.Time `db:"otp_issued_at"`
	LoginAt      time.Time  `db:"login_at"`
	LastActivity time.Time  `db:"last_activity"`
}

// Authenticated reports whether the session belongs to a logged-in identity.
func (s *Session) Authenticated() bool {
	return s != nil && s.IdentityID != nil
}

// Store persists sessions. The portal is request-per-call: every request
// re-reads its session row, so the store is the single source of truth.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id uuid.UUID, role Role) (*Session, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetOTP(ctx context.Context, id uuid.UUID, code string, target uuid.UUID, issuedAt time.Time) error
	ClearOTP(ctx context.Context, id uuid.UUID) error
	Authenticate(ctx context.Context, id uuid.UUID, identityID uuid.UUID, employeeRole string) error
}

// NewCSRFToken returns an opaque random token bound to a session at creation.
func NewCSRFToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

type contextKey string

const sessionKey contextKey = "portal_session"

// WithSession stashes the session in the request context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext retrieves the session placed by the middleware, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}
