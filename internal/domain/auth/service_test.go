package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/munihealth/portal/internal/platform/session"
	"github.com/munihealth/portal/internal/platform/web"
)

// -- Mock Repository --

type mockAuthRepo struct {
	employees map[string]*Employee
	patients  map[string]*Patient
	failures  map[string][]time.Time
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		employees: make(map[string]*Employee),
		patients:  make(map[string]*Patient),
		failures:  make(map[string][]time.Time),
	}
}

func (m *mockAuthRepo) GetEmployeeByUsername(_ context.Context, username string) (*Employee, error) {
	e, ok := m.employees[username]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return e, nil
}

func (m *mockAuthRepo) GetEmployeeByID(_ context.Context, id uuid.UUID) (*Employee, error) {
	for _, e := range m.employees {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockAuthRepo) UpdateEmployeePassword(_ context.Context, id uuid.UUID, hash string) error {
	for _, e := range m.employees {
		if e.ID == id {
			e.PasswordHash = hash
			return nil
		}
	}
	return fmt.Errorf("not found")
}

func (m *mockAuthRepo) GetPatientByEmail(_ context.Context, email string) (*Patient, error) {
	p, ok := m.patients[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return p, nil
}

func (m *mockAuthRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	for _, p := range m.patients {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockAuthRepo) UpdatePatientPassword(_ context.Context, id uuid.UUID, hash string) error {
	for _, p := range m.patients {
		if p.ID == id {
			p.PasswordHash = hash
			return nil
		}
	}
	return fmt.Errorf("not found")
}

func (m *mockAuthRepo) CountRecentFailures(_ context.Context, ipHash string, since time.Time) (int, error) {
	n := 0
	for _, at := range m.failures[ipHash] {
		if !at.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *mockAuthRepo) RecordFailure(_ context.Context, ipHash string) error {
	m.failures[ipHash] = append(m.failures[ipHash], time.Now())
	return nil
}

func (m *mockAuthRepo) ClearFailures(_ context.Context, ipHash string) error {
	delete(m.failures, ipHash)
	return nil
}

// -- In-memory session store --

type memSessionStore struct {
	sessions map[uuid.UUID]*session.Session
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[uuid.UUID]*session.Session)}
}

func (m *memSessionStore) Create(_ context.Context, s *session.Session) error {
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memSessionStore) Get(_ context.Context, id uuid.UUID, role session.Role) (*session.Session, error) {
	s, ok := m.sessions[id]
	if !ok || s.Role != role {
		return nil, session.ErrNoSession
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionStore) Touch(_ context.Context, id uuid.UUID, at time.Time) error {
	if s, ok := m.sessions[id]; ok {
		s.LastActivity = at
	}
	return nil
}

func (m *memSessionStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.sessions, id)
	return nil
}

func (m *memSessionStore) SetOTP(_ context.Context, id uuid.UUID, code string, target uuid.UUID, issuedAt time.Time) error {
	s, ok := m.sessions[id]
	if !ok {
		return session.ErrNoSession
	}
	s.OTPCode = &code
	s.OTPTarget = &target
	s.OTPIssuedAt = &issuedAt
	return nil
}

func (m *memSessionStore) ClearOTP(_ context.Context, id uuid.UUID) error {
	s, ok := m.sessions[id]
	if !ok {
		return session.ErrNoSession
	}
	s.OTPCode, s.OTPTarget, s.OTPIssuedAt = nil, nil, nil
	return nil
}

func (m *memSessionStore) Authenticate(_ context.Context, id uuid.UUID, identityID uuid.UUID, employeeRole string) error {
	s, ok := m.sessions[id]
	if !ok {
		return session.ErrNoSession
	}
	idCopy := identityID
	s.IdentityID = &idCopy
	s.EmployeeRole = employeeRole
	return nil
}

// -- Mock mailer --

type mockMailer struct {
	sentTo   string
	sentCode string
	fail     bool
}

func (m *mockMailer) SendOTP(to, code string) error {
	if m.fail {
		return fmt.Errorf("smtp unavailable")
	}
	m.sentTo = to
	m.sentCode = code
	return nil
}

// -- Fixtures --

func testLimits() Limits {
	return Limits{MaxAttempts: 5, BlockWindow: 15 * time.Minute, OTPTTL: 15 * time.Minute}
}

func newTestAuth(t *testing.T) (*Service, *mockAuthRepo, *memSessionStore, *mockMailer) {
	t.Helper()
	repo := newMockAuthRepo()
	store := newMemSessionStore()
	mgr := session.NewManager(store, 30*time.Minute, false)
	mailer := &mockMailer{}
	return NewService(repo, mgr, mailer, testLimits()), repo, store, mailer
}

func newEchoContext() echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func mustHash(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(h)
}

func seedEmployee(t *testing.T, repo *mockAuthRepo, username, pw, role string) *Employee {
	t.Helper()
	e := &Employee{ID: uuid.New(), Username: username, PasswordHash: mustHash(t, pw), FullName: "Test Staff", Role: role, Active: true}
	repo.employees[username] = e
	return e
}

func seedPatient(t *testing.T, repo *mockAuthRepo, email, pw string) *Patient {
	t.Helper()
	p := &Patient{ID: uuid.New(), Email: email, PasswordHash: mustHash(t, pw), FullName: "Test Patient", Active: true}
	repo.patients[email] = p
	return p
}

func kindOf(t *testing.T, err error) web.Kind {
	t.Helper()
	var werr *web.Error
	if !errors.As(err, &werr) {
		t.Fatalf("expected *web.Error, got %T: %v", err, err)
	}
	return werr.Kind
}

// -- Login --

func TestEmployeeLogin_Success(t *testing.T) {
	svc, repo, store, _ := newTestAuth(t)
	emp := seedEmployee(t, repo, "cashier1", "password123", RoleCashier)

	c := newEchoContext()
	sess, got, err := svc.EmployeeLogin(context.Background(), c, "cashier1", "password123", "10.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != emp.ID {
		t.Error("wrong employee returned")
	}
	if sess.Role != session.RoleEmployee || sess.EmployeeRole != RoleCashier {
		t.Errorf("unexpected session role: %s/%s", sess.Role, sess.EmployeeRole)
	}
	if !sess.Authenticated() {
		t.Error("expected an authenticated session")
	}
	if _, ok := store.sessions[sess.ID]; !ok {
		t.Error("session not persisted")
	}
	if sess.CSRFToken == "" {
		t.Error("expected a CSRF token")
	}
}

func TestEmployeeLogin_WrongPassword(t *testing.T) {
	svc, repo, _, _ := newTestAuth(t)
	seedEmployee(t, repo, "cashier1", "password123", RoleCashier)

	_, _, err := svc.EmployeeLogin(context.Background(), newEchoContext(), "cashier1", "nope", "10.0.0.1")
	if err == nil {
		t.Fatal("expected error")
	}
	if k := kindOf(t, err); k != web.KindUnauthorized {
		t.Errorf("expected unauthorized, got %s", k)
	}
	if n, _ := repo.CountRecentFailures(context.Background(), HashIP("10.0.0.1"), time.Now().Add(-time.Minute)); n != 1 {
		t.Errorf("expected 1 recorded failure, got %d", n)
	}
}

func TestEmployeeLogin_UnknownUser(t *testing.T) {
	svc, _, _, _ := newTestAuth(t)

	_, _, err := svc.EmployeeLogin(context.Background(), newEchoContext(), "ghost", "whatever", "10.0.0.1")
	if err == nil {
		t.Fatal("expected error")
	}
	if k := kindOf(t, err); k != web.KindUnauthorized {
		t.Errorf("expected unauthorized, got %s", k)
	}
}

func TestEmployeeLogin_InactiveAccount(t *testing.T) {
	svc, repo, _, _ := newTestAuth(t)
	emp := seedEmployee(t, repo, "former", "password123", RoleRecords)
	emp.Active = false

	_, _, err := svc.EmployeeLogin(context.Background(), newEchoContext(), "former", "password123", "10.0.0.1")
	if err == nil {
		t.Fatal("expected error for inactive account")
	}
	if k := kindOf(t, err); k != web.KindUnauthorized {
		t.Errorf("expected unauthorized, got %s", k)
	}
}

func TestEmployeeLogin_RateLimited(t *testing.T) {
	svc, repo, _, _ := newTestAuth(t)
	seedEmployee(t, repo, "cashier1", "password123", RoleCashier)

	for i := 0; i < 5; i++ {
		if _, _, err := svc.EmployeeLogin(context.Background(), newEchoContext(), "cashier1", "nope", "10.0.0.1"); err == nil {
			t.Fatalf("attempt %d: expected error", i)
		}
	}

	// The sixth attempt is refused even with the right password.
	_, _, err := svc.EmployeeLogin(context.Background(), newEchoContext(), "cashier1", "password123", "10.0.0.1")
	if err == nil {
		t.Fatal("expected rate limit error")
	}
	if k := kindOf(t, err); k != web.KindRateLimited {
		t.Errorf("expected rate_limited, got %s", k)
	}

	// A different address is unaffected.
	if _, _, err := svc.EmployeeLogin(context.Background(), newEchoContext(), "cashier1", "password123", "10.0.0.2"); err != nil {
		t.Errorf("other IP should not be limited: %v", err)
	}
}

func TestLogin_SuccessClearsFailures(t *testing.T) {
	svc, repo, _, _ := newTestAuth(t)
	seedEmployee(t, repo, "cashier1", "password123", RoleCashier)

	for i := 0; i < 4; i++ {
		svc.EmployeeLogin(context.Background(), newEchoContext(), "cashier1", "nope", "10.0.0.1")
	}
	if _, _, err := svc.EmployeeLogin(context.Background(), newEchoContext(), "cashier1", "password123", "10.0.0.1"); err != nil {
		t.Fatalf("login within limit: %v", err)
	}
	if n, _ := repo.CountRecentFailures(context.Background(), HashIP("10.0.0.1"), time.Now().Add(-time.Hour)); n != 0 {
		t.Errorf("expected failures cleared, got %d", n)
	}
}

func TestPatientLogin_Success(t *testing.T) {
	svc, repo, _, _ := newTestAuth(t)
	pat := seedPatient(t, repo, "jane@example.com", "password123")

	sess, got, err := svc.PatientLogin(context.Background(), newEchoContext(), "jane@example.com", "password123", "10.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != pat.ID {
		t.Error("wrong patient returned")
	}
	if sess.Role != session.RolePatient {
		t.Errorf("expected patient session, got %s", sess.Role)
	}
}

func TestHashIP(t *testing.T) {
	a, b := HashIP("10.0.0.1"), HashIP("10.0.0.1")
	if a != b {
		t.Error("expected deterministic hash")
	}
	if a == "10.0.0.1" || len(a) != 64 {
		t.Error("expected a hex sha256, not the raw address")
	}
	if HashIP("10.0.0.2") == a {
		t.Error("different addresses must hash differently")
	}
}

// -- Password reset --

func requestReset(t *testing.T, svc *Service, store *memSessionStore, c echo.Context, email string) *session.Session {
	t.Helper()
	sess, err := svc.RequestReset(context.Background(), c, email)
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}
	stored, ok := store.sessions[sess.ID]
	if !ok {
		t.Fatal("reset session not persisted")
	}
	return stored
}

func TestRequestReset_Success(t *testing.T) {
	svc, repo, store, mailer := newTestAuth(t)
	pat := seedPatient(t, repo, "jane@example.com", "password123")

	sess := requestReset(t, svc, store, newEchoContext(), "jane@example.com")
	if mailer.sentTo != "jane@example.com" {
		t.Errorf("expected mail to patient, got %q", mailer.sentTo)
	}
	if len(mailer.sentCode) != 6 {
		t.Errorf("expected a 6-digit code, got %q", mailer.sentCode)
	}
	if *sess.OTPCode != mailer.sentCode {
		t.Error("stored code must match the mailed code")
	}
	if *sess.OTPTarget != pat.ID {
		t.Error("OTP target must be the patient")
	}
	if sess.Authenticated() {
		t.Error("reset session must be anonymous")
	}
}

func TestRequestReset_UnknownEmail(t *testing.T) {
	svc, _, _, _ := newTestAuth(t)
	_, err := svc.RequestReset(context.Background(), newEchoContext(), "ghost@example.com")
	if err == nil {
		t.Fatal("expected error")
	}
	if k := kindOf(t, err); k != web.KindNotFound {
		t.Errorf("expected not_found, got %s", k)
	}
}

func TestRequestReset_MailFailureSurfaced(t *testing.T) {
	svc, repo, store, mailer := newTestAuth(t)
	seedPatient(t, repo, "jane@example.com", "password123")
	mailer.fail = true

	_, err := svc.RequestReset(context.Background(), newEchoContext(), "jane@example.com")
	if err == nil {
		t.Fatal("expected the mail failure to surface")
	}
	if len(store.sessions) != 0 {
		t.Error("failed reset must not leave a session behind")
	}
}

func TestVerifyReset_Success(t *testing.T) {
	svc, repo, store, mailer := newTestAuth(t)
	pat := seedPatient(t, repo, "jane@example.com", "oldpassword")

	sess := requestReset(t, svc, store, newEchoContext(), "jane@example.com")
	if err := svc.VerifyReset(context.Background(), newEchoContext(), sess, mailer.sentCode, "newpassword1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(pat.PasswordHash), []byte("newpassword1")) != nil {
		t.Error("password was not updated")
	}

	// The session survives, promoted to a logged-in patient session.
	stored, ok := store.sessions[sess.ID]
	if !ok {
		t.Fatal("reset session must survive as a logged-in session")
	}
	if !stored.Authenticated() || *stored.IdentityID != pat.ID {
		t.Error("session must be promoted to the patient identity")
	}
	if stored.OTPCode != nil || stored.OTPTarget != nil || stored.OTPIssuedAt != nil {
		t.Error("OTP state must be cleared after use")
	}
}

func TestVerifyReset_WrongCode(t *testing.T) {
	svc, repo, store, _ := newTestAuth(t)
	pat := seedPatient(t, repo, "jane@example.com", "oldpassword")
	oldHash := pat.PasswordHash

	sess := requestReset(t, svc, store, newEchoContext(), "jane@example.com")
	err := svc.VerifyReset(context.Background(), newEchoContext(), sess, "000000", "newpassword1")
	if err == nil {
		t.Fatal("expected error for wrong code")
	}
	if pat.PasswordHash != oldHash {
		t.Error("password must be untouched")
	}
}

func TestVerifyReset_ExpiredCode(t *testing.T) {
	svc, repo, store, mailer := newTestAuth(t)
	seedPatient(t, repo, "jane@example.com", "oldpassword")

	sess := requestReset(t, svc, store, newEchoContext(), "jane@example.com")
	stale := time.Now().Add(-16 * time.Minute)
	sess.OTPIssuedAt = &stale

	err := svc.VerifyReset(context.Background(), newEchoContext(), sess, mailer.sentCode, "newpassword1")
	if err == nil {
		t.Fatal("expected error for expired code")
	}
	if k := kindOf(t, err); k != web.KindValidation {
		t.Errorf("expected validation, got %s", k)
	}
}

func TestVerifyReset_NoResetInProgress(t *testing.T) {
	svc, _, _, _ := newTestAuth(t)
	sess := &session.Session{ID: uuid.New(), Role: session.RolePatient}
	if err := svc.VerifyReset(context.Background(), newEchoContext(), sess, "123456", "newpassword1"); err == nil {
		t.Fatal("expected error with no OTP on the session")
	}
}

func TestVerifyReset_ShortPassword(t *testing.T) {
	svc, repo, store, mailer := newTestAuth(t)
	seedPatient(t, repo, "jane@example.com", "oldpassword")

	sess := requestReset(t, svc, store, newEchoContext(), "jane@example.com")
	if err := svc.VerifyReset(context.Background(), newEchoContext(), sess, mailer.sentCode, "short"); err == nil {
		t.Fatal("expected error for short password")
	}
}

// -- ChangePassword --

func TestChangePassword_Employee(t *testing.T) {
	svc, repo, _, _ := newTestAuth(t)
	emp := seedEmployee(t, repo, "doc1", "oldpassword", RoleDoctor)

	id := emp.ID
	sess := &session.Session{Role: session.RoleEmployee, IdentityID: &id}
	if err := svc.ChangePassword(context.Background(), sess, "oldpassword", "newpassword1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(emp.PasswordHash), []byte("newpassword1")) != nil {
		t.Error("password was not updated")
	}
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	svc, repo, _, _ := newTestAuth(t)
	pat := seedPatient(t, repo, "jane@example.com", "oldpassword")

	id := pat.ID
	sess := &session.Session{Role: session.RolePatient, IdentityID: &id}
	err := svc.ChangePassword(context.Background(), sess, "wrong", "newpassword1")
	if err == nil {
		t.Fatal("expected error for wrong current password")
	}
	if k := kindOf(t, err); k != web.KindValidation {
		t.Errorf("expected validation, got %s", k)
	}
}
