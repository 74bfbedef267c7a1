package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/munihealth/portal/internal/platform/mail"
	"github.com/munihealth/portal/internal/platform/session"
	"github.com/munihealth/portal/internal/platform/web"
)

// Limits applied to the login and reset flows.
type Limits struct {
	MaxAttempts int
	BlockWindow time.Duration
	OTPTTL      time.Duration
}

type Service struct {
	repo     Repository
	sessions *session.Manager
	mailer   mail.Sender
	limits   Limits
}

func NewService(repo Repository, sessions *session.Manager, mailer mail.Sender, limits Limits) *Service {
	return &Service{repo: repo, sessions: sessions, mailer: mailer, limits: limits}
}

// HashIP derives the login_attempts key. Raw client addresses are never
// stored.
func HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}

// EmployeeLogin authenticates a staff account and opens an employee session.
// Failed attempts count against the caller's hashed IP; once the window
// holds MaxAttempts failures every further attempt is refused until the
// window slides past them.
func (s *Service) EmployeeLogin(ctx context.Context, c echo.Context, username, password, ip string) (*session.Session, *Employee, error) {
	ipHash := HashIP(ip)
	if err := s.checkRate(ctx, ipHash); err != nil {
		return nil, nil, err
	}

	emp, err := s.repo.GetEmployeeByUsername(ctx, username)
	if err != nil {
		return nil, nil, s.failLogin(ctx, ipHash, err)
	}
	if !emp.Active || bcrypt.CompareHashAndPassword([]byte(emp.PasswordHash), []byte(password)) != nil {
		return nil, nil, s.failLogin(ctx, ipHash, nil)
	}

	if err := s.repo.ClearFailures(ctx, ipHash); err != nil {
		return nil, nil, web.Internal(err)
	}
	sess, err := s.sessions.Begin(ctx, c, session.RoleEmployee, emp.ID, emp.Role)
	if err != nil {
		return nil, nil, web.Internal(err)
	}
	return sess, emp, nil
}

// PatientLogin is the portal-side counterpart, keyed by email.
func (s *Service) PatientLogin(ctx context.Context, c echo.Context, email, password, ip string) (*session.Session, *Patient, error) {
	ipHash := HashIP(ip)
	if err := s.checkRate(ctx, ipHash); err != nil {
		return nil, nil, err
	}

	pat, err := s.repo.GetPatientByEmail(ctx, email)
	if err != nil {
		return nil, nil, s.failLogin(ctx, ipHash, err)
	}
	if !pat.Active || bcrypt.CompareHashAndPassword([]byte(pat.PasswordHash), []byte(password)) != nil {
		return nil, nil, s.failLogin(ctx, ipHash, nil)
	}

	if err := s.repo.ClearFailures(ctx, ipHash); err != nil {
		return nil, nil, web.Internal(err)
	}
	sess, err := s.sessions.Begin(ctx, c, session.RolePatient, pat.ID, "")
	if err != nil {
		return nil, nil, web.Internal(err)
	}
	return sess, pat, nil
}

func (s *Service) checkRate(ctx context.Context, ipHash string) error {
	since := time.Now().Add(-s.limits.BlockWindow)
	n, err := s.repo.CountRecentFailures(ctx, ipHash, since)
	if err != nil {
		return web.Internal(err)
	}
	if n >= s.limits.MaxAttempts {
		return web.E(web.KindRateLimited, "too many failed login attempts, try again later")
	}
	return nil
}

// failLogin records the attempt and collapses every credential failure into
// one message so usernames cannot be probed.
func (s *Service) failLogin(ctx context.Context, ipHash string, cause error) error {
	if cause != nil && !errors.Is(cause, pgx.ErrNoRows) {
		return web.Internal(cause)
	}
	if err := s.repo.RecordFailure(ctx, ipHash); err != nil {
		return web.Internal(err)
	}
	return web.E(web.KindUnauthorized, "invalid credentials")
}

// Logout destroys the presented session.
func (s *Service) Logout(ctx context.Context, c echo.Context, sess *session.Session) error {
	if err := s.sessions.Destroy(ctx, c, sess); err != nil {
		return web.Internal(err)
	}
	return nil
}

// RequestReset begins the patient password reset flow: a fresh anonymous
// session carries a 6-digit code mailed to the account address. The session
// is returned so the handler can hand its CSRF token to the client for the
// verify step. A mail failure aborts the flow and is reported, never
// silently dropped.
func (s *Service) RequestReset(ctx context.Context, c echo.Context, email string) (*session.Session, error) {
	pat, err := s.repo.GetPatientByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, web.E(web.KindNotFound, "no account with that email")
		}
		return nil, web.Internal(err)
	}
	if !pat.Active {
		return nil, web.E(web.KindNotFound, "no account with that email")
	}

	code, err := newOTP()
	if err != nil {
		return nil, web.Internal(err)
	}

	sess, err := s.sessions.BeginAnonymous(ctx, c, session.RolePatient)
	if err != nil {
		return nil, web.Internal(err)
	}
	if err := s.sessions.Store().SetOTP(ctx, sess.ID, code, pat.ID, time.Now()); err != nil {
		return nil, web.Internal(err)
	}

	if err := s.mailer.SendOTP(pat.Email, code); err != nil {
		_ = s.sessions.Destroy(ctx, c, sess)
		return nil, web.Wrap(web.KindConflict, "could not send the reset code, try again later", err)
	}
	return sess, nil
}

// VerifyReset checks the submitted code against the anonymous session and,
// on a match inside the TTL, replaces the patient's password and promotes the
// reset session to a logged-in one: the verified code already proved control
// of the mailbox. Comparison is constant time.
func (s *Service) VerifyReset(ctx context.Context, c echo.Context, sess *session.Session, code, newPassword string) error {
	if sess == nil || sess.OTPCode == nil || sess.OTPTarget == nil || sess.OTPIssuedAt == nil {
		return web.E(web.KindValidation, "no password reset in progress")
	}
	if time.Since(*sess.OTPIssuedAt) > s.limits.OTPTTL {
		_ = s.sessions.Store().ClearOTP(ctx, sess.ID)
		return web.E(web.KindValidation, "the reset code has expired")
	}
	if subtle.ConstantTimeCompare([]byte(*sess.OTPCode), []byte(code)) != 1 {
		return web.E(web.KindValidation, "invalid reset code")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return web.Internal(err)
	}
	target := *sess.OTPTarget
	if err := s.repo.UpdatePatientPassword(ctx, target, string(hash)); err != nil {
		return web.Internal(err)
	}
	if err := s.sessions.Store().ClearOTP(ctx, sess.ID); err != nil {
		return web.Internal(err)
	}
	if err := s.sessions.Store().Authenticate(ctx, sess.ID, target, ""); err != nil {
		return web.Internal(err)
	}
	sess.IdentityID = &target
	sess.OTPCode, sess.OTPTarget, sess.OTPIssuedAt = nil, nil, nil
	return nil
}

// ChangePassword replaces the password of the logged-in identity after
// verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, sess *session.Session, current, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	var hash string
	var update func(context.Context, uuid.UUID, string) error
	switch sess.Role {
	case session.RoleEmployee:
		emp, err := s.repo.GetEmployeeByID(ctx, *sess.IdentityID)
		if err != nil {
			return web.Internal(err)
		}
		hash = emp.PasswordHash
		update = s.repo.UpdateEmployeePassword
	case session.RolePatient:
		pat, err := s.repo.GetPatientByID(ctx, *sess.IdentityID)
		if err != nil {
			return web.Internal(err)
		}
		hash = pat.PasswordHash
		update = s.repo.UpdatePatientPassword
	default:
		return web.E(web.KindUnauthorized, "unknown session role")
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(current)) != nil {
		return web.E(web.KindValidation, "current password is incorrect")
	}
	next, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return web.Internal(err)
	}
	if err := update(ctx, *sess.IdentityID, string(next)); err != nil {
		return web.Internal(err)
	}
	return nil
}

func validatePassword(pw string) error {
	if len(pw) < 8 {
		return web.E(web.KindValidation, "password must be at least 8 characters")
	}
	return nil
}

func newOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
