package activity

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/munihealth/portal/internal/platform/session"
	"github.com/munihealth/portal/internal/platform/web"
	"github.com/munihealth/portal/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the activity-log query endpoint; admin only.
func (h *Handler) RegisterRoutes(emp *echo.Group) {
	admin := emp.Group("", session.RequireEmployeeRole("admin"))
	admin.GET("/activity-log", h.Search)
}

func (h *Handler) Search(c echo.Context) error {
	pg := pagination.FromContext(c)

	f := Filter{
		ActorRole: c.QueryParam("actor_role"),
		Action:    c.QueryParam("action"),
	}
	if raw := c.QueryParam("actor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return web.Fail(c, web.E(web.KindValidation, "invalid actor_id"))
		}
		f.ActorID = &id
	}
	if raw := c.QueryParam("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return web.Fail(c, web.E(web.KindValidation, "invalid from date, want YYYY-MM-DD"))
		}
		f.From = &t
	}
	if raw := c.QueryParam("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return web.Fail(c, web.E(web.KindValidation, "invalid to date, want YYYY-MM-DD"))
		}
		f.To = &t
	}

	entries, total, err := h.svc.Search(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return web.Fail(c, err)
	}
	return web.OK(c, "ok", pagination.NewResponse(entries, total, pg.Limit, pg.Offset))
}
