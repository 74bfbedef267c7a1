package session

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Manager creates, loads and destroys cookie-backed sessions for one or both
// roles. Cookies are HttpOnly, SameSite=Lax, Path=/; the value is an opaque
// session id, never identity data.
type Manager struct {
	store   Store
	timeout time.Duration
	secure  bool
}

func NewManager(store Store, timeout time.Duration, secure bool) *Manager {
	return &Manager{store: store, timeout: timeout, secure: secure}
}

// Timeout returns the configured idle timeout.
func (m *Manager) Timeout() time.Duration { return m.timeout }

// Begin starts an authenticated session for identityID. Any session presented
// by the role's cookie is deleted first and a fresh id is issued, so a
// pre-login session id can never survive into an authenticated one.
func (m *Manager) Begin(ctx context.Context, c echo.Context, role Role, identityID uuid.UUID, employeeRole string) (*Session, error) {
	m.dropPresented(ctx, c, role)

	csrf, err := NewCSRFToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	id := identityID
	s := &Session{
		ID:           uuid.New(),
		Role:         role,
		IdentityID:   &id,
		EmployeeRole: employeeRole,
		CSRFToken:    csrf,
		LoginAt:      now,
		LastActivity: now,
	}
	if err := m.store.Create(ctx, s); err != nil {
		return nil, err
	}

	m.writeCookie(c, role, s.ID.String(), 0)
	return s, nil
}

// BeginAnonymous starts an unauthenticated session. Used by the password
// reset flow, which needs somewhere to hold the OTP before login.
func (m *Manager) BeginAnonymous(ctx context.Context, c echo.Context, role Role) (*Session, error) {
	m.dropPresented(ctx, c, role)

	csrf, err := NewCSRFToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s := &Session{
		ID:           uuid.New(),
		Role:         role,
		CSRFToken:    csrf,
		LoginAt:      now,
		LastActivity: now,
	}
	if err := m.store.Create(ctx, s); err != nil {
		return nil, err
	}

	m.writeCookie(c, role, s.ID.String(), 0)
	return s, nil
}

// Load reads the role's cookie and fetches the session row. It then applies
// the idle timeout: an expired session is deleted and reported as ErrExpired,
// a live one has its last_activity refreshed.
func (m *Manager) Load(ctx context.Context, c echo.Context, role Role) (*Session, error) {
	cookie, err := c.Cookie(CookieName(role))
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}
	id, err := uuid.Parse(cookie.Value)
	if err != nil {
		return nil, ErrNoSession
	}

	s, err := m.store.Get(ctx, id, role)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if now.Sub(s.LastActivity) > m.timeout {
		_ = m.store.Delete(ctx, s.ID)
		m.writeCookie(c, role, "", -1)
		return nil, ErrExpired
	}

	if err := m.store.Touch(ctx, s.ID, now); err != nil {
		return nil, err
	}
	s.LastActivity = now
	return s, nil
}

// Destroy deletes the session row and expires the cookie.
func (m *Manager) Destroy(ctx context.Context, c echo.Context, s *Session) error {
	err := m.store.Delete(ctx, s.ID)
	m.writeCookie(c, s.Role, "", -1)
	return err
}

// Store exposes the underlying store for flows that mutate session state
// directly (OTP, post-reset authentication).
func (m *Manager) Store() Store { return m.store }

// VerifyCSRF compares a submitted token against the session's token in
// constant time.
func VerifyCSRF(s *Session, token string) bool {
	if s == nil || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.CSRFToken), []byte(token)) == 1
}

func (m *Manager) dropPresented(ctx context.Context, c echo.Context, role Role) {
	cookie, err := c.Cookie(CookieName(role))
	if err != nil || cookie.Value == "" {
		return
	}
	if id, err := uuid.Parse(cookie.Value); err == nil {
		_ = m.store.Delete(ctx, id)
	}
}

func (m *Manager) writeCookie(c echo.Context, role Role, value string, maxAge int) {
	c.SetCookie(&http.Cookie{
		Name:     CookieName(role),
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
