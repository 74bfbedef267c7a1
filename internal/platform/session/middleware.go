package session

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/munihealth/portal/internal/platform/web"
)

// CSRFHeader carries the session's CSRF token on mutating requests.
const CSRFHeader = "X-CSRF-Token"

// Require loads and validates a session of the given role, enforces the idle
// timeout, checks the CSRF token on mutating methods, and stashes the session
// in the request context. Anonymous sessions do not pass.
func (m *Manager) Require(role Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			s, err := m.Load(ctx, c, role)
			if err != nil {
				if errors.Is(err, ErrNoSession) || errors.Is(err, ErrExpired) {
					return web.Fail(c, web.E(web.KindUnauthorized, "not logged in or session expired"))
				}
				return web.Fail(c, web.Internal(err))
			}
			if !s.Authenticated() {
				return web.Fail(c, web.E(web.KindUnauthorized, "not logged in"))
			}

			if mutating(c.Request().Method) && !VerifyCSRF(s, c.Request().Header.Get(CSRFHeader)) {
				return web.Fail(c, web.E(web.KindForbidden, "missing or invalid CSRF token"))
			}

			c.SetRequest(c.Request().WithContext(WithSession(ctx, s)))
			return next(c)
		}
	}
}

// RequireEmployeeRole restricts a route to employees holding one of the given
// roles. Admin always passes.
func RequireEmployeeRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s := FromContext(c.Request().Context())
			if s == nil || s.Role != RoleEmployee {
				return web.Fail(c, web.E(web.KindUnauthorized, "employee session required"))
			}
			for _, required := range roles {
				if s.EmployeeRole == required || s.EmployeeRole == "admin" {
					return next(c)
				}
			}
			return web.Fail(c, web.E(web.KindForbidden, "role not permitted"))
		}
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
