package auth

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/munihealth/portal/internal/domain/activity"
	"github.com/munihealth/portal/internal/platform/session"
	"github.com/munihealth/portal/internal/platform/web"
)

type Handler struct {
	svc      *Service
	sessions *session.Manager
	log      activity.Recorder
}

func NewHandler(svc *Service, sessions *session.Manager, log activity.Recorder) *Handler {
	return &Handler{svc: svc, sessions: sessions, log: log}
}

// RegisterRoutes mounts the auth surface. Login and the reset flow sit on
// the public group; logout, session info and password change sit behind the
// role middleware.
func (h *Handler) RegisterRoutes(public, emp, pat *echo.Group) {
	public.POST("/employee/login", h.EmployeeLogin)
	public.POST("/patient/login", h.PatientLogin)
	public.POST("/patient/password-reset/request", h.RequestReset)
	public.POST("/patient/password-reset/verify", h.VerifyReset)

	emp.POST("/logout", h.Logout)
	emp.GET("/session", h.Session)
	emp.POST("/password", h.ChangePassword)

	pat.POST("/logout", h.Logout)
	pat.GET("/session", h.Session)
	pat.POST("/password", h.ChangePassword)
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Role         session.Role `json:"role"`
	EmployeeRole string       `json:"employee_role,omitempty"`
	FullName     string       `json:"full_name,omitempty"`
	CSRFToken    string       `json:"csrf_token"`
}

func (h *Handler) EmployeeLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return web.Fail(c, web.E(web.KindValidation, "malformed request body"))
	}
	if req.Username == "" || req.Password == "" {
		return web.Fail(c, web.E(web.KindValidation, "username and password are required"))
	}

	sess, emp, err := h.svc.EmployeeLogin(c.Request().Context(), c, req.Username, req.Password, c.RealIP())
	if err != nil {
		return web.Fail(c, err)
	}

	ctx := session.WithSession(c.Request().Context(), sess)
	h.log.Record(ctx, "auth.login", "employee "+emp.Username+" logged in", nil, c.RealIP())
	return web.OK(c, "logged in", sessionResponse{
		Role:         sess.Role,
		EmployeeRole: emp.Role,
		FullName:     emp.FullName,
		CSRFToken:    sess.CSRFToken,
	})
}

func (h *Handler) PatientLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return web.Fail(c, web.E(web.KindValidation, "malformed request body"))
	}
	if req.Email == "" || req.Password == "" {
		return web.Fail(c, web.E(web.KindValidation, "email and password are required"))
	}

	sess, pat, err := h.svc.PatientLogin(c.Request().Context(), c, req.Email, req.Password, c.RealIP())
	if err != nil {
		return web.Fail(c, err)
	}

	ctx := session.WithSession(c.Request().Context(), sess)
	h.log.Record(ctx, "auth.login", "patient logged in", nil, c.RealIP())
	return web.OK(c, "logged in", sessionResponse{
		Role:      sess.Role,
		FullName:  pat.FullName,
		CSRFToken: sess.CSRFToken,
	})
}

func (h *Handler) Logout(c echo.Context) error {
	sess := session.FromContext(c.Request().Context())
	if err := h.svc.Logout(c.Request().Context(), c, sess); err != nil {
		return web.Fail(c, err)
	}
	return web.OK(c, "logged out", nil)
}

// Session reports the authenticated identity and re-issues the CSRF token,
// which single-page clients fetch on load.
func (h *Handler) Session(c echo.Context) error {
	sess := session.FromContext(c.Request().Context())
	return web.OK(c, "ok", sessionResponse{
		Role:         sess.Role,
		EmployeeRole: sess.EmployeeRole,
		CSRFToken:    sess.CSRFToken,
	})
}

type resetRequest struct {
	Email string `json:"email"`
}

func (h *Handler) RequestReset(c echo.Context) error {
	var req resetRequest
	if err := c.Bind(&req); err != nil {
		return web.Fail(c, web.E(web.KindValidation, "malformed request body"))
	}
	if req.Email == "" {
		return web.Fail(c, web.E(web.KindValidation, "email is required"))
	}
	sess, err := h.svc.RequestReset(c.Request().Context(), c, req.Email)
	if err != nil {
		return web.Fail(c, err)
	}
	h.log.Record(c.Request().Context(), "auth.reset_request", "password reset requested", nil, c.RealIP())
	// The client needs this token to submit the verify step.
	return web.OK(c, "reset code sent", sessionResponse{
		Role:      sess.Role,
		CSRFToken: sess.CSRFToken,
	})
}

type verifyRequest struct {
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (h *Handler) VerifyReset(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return web.Fail(c, web.E(web.KindValidation, "malformed request body"))
	}

	// The reset session is anonymous, so the role middleware does not apply
	// here; load it straight from the cookie and check the CSRF token the
	// request step handed out.
	sess, err := h.sessions.Load(c.Request().Context(), c, session.RolePatient)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) || errors.Is(err, session.ErrExpired) {
			return web.Fail(c, web.E(web.KindValidation, "no password reset in progress"))
		}
		return web.Fail(c, web.Internal(err))
	}
	if !session.VerifyCSRF(sess, c.Request().Header.Get(session.CSRFHeader)) {
		return web.Fail(c, web.E(web.KindForbidden, "missing or invalid CSRF token"))
	}

	if err := h.svc.VerifyReset(c.Request().Context(), c, sess, req.Code, req.NewPassword); err != nil {
		return web.Fail(c, err)
	}
	h.log.Record(c.Request().Context(), "auth.reset_complete", "password reset completed", nil, c.RealIP())
	// The session is now a logged-in patient session.
	return web.OK(c, "password updated", sessionResponse{
		Role:      sess.Role,
		CSRFToken: sess.CSRFToken,
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) ChangePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return web.Fail(c, web.E(web.KindValidation, "malformed request body"))
	}

	sess := session.FromContext(c.Request().Context())
	if err := h.svc.ChangePassword(c.Request().Context(), sess, req.CurrentPassword, req.NewPassword); err != nil {
		return web.Fail(c, err)
	}
	h.log.Record(c.Request().Context(), "auth.password_change", "password changed", nil, c.RealIP())
	return web.OK(c, "password updated", nil)
}
