package catalog

import (
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

// RegisterRoutes mounts catalog endpoints on the employee group. Any employee
// can read the catalog; only admins may change it.
func (h *Handler) RegisterRoutes(emp *echo.Group) {
	emp.GET("/services", h.List)
	emp.GET("/services/:id", h.Get)

	admin := emp.Group("", session.RequireEmployeeRole("admin"))
	admin.POST("/services", h.Create)
	admin.PUT("/services/:id", h.Update)
	admin.DELETE("/services/:id", h.Deactivate)
}

type itemRequest struct {
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Active    *bool   `json:"active,omitempty"`
}

func (h *Handler) Create(c echo.Context) error {
	var req itemRequest
	if err := c.Bind(&req); err != nil {
		return web.Fail(c, web.E(web.KindValidation, "malformed request body"))
	}
	item := &ServiceItem{Name: req.Name, UnitPrice: req.UnitPrice}
	if err := h.svc.Create(c.Request().Context(), item); err != nil {
		return web.Fail(c, err)
	}
	return web.Created(c, "service item created", item)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return web.Fail(c, web.E(web.KindValidation, "invalid id"))
	}
	item, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return web.Fail(c, err)
	}
	return web.OK(c, "ok", item)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return web.Fail(c, web.E(web.KindValidation, "invalid id"))
	}
	var req itemRequest
	if err := c.Bind(&req); err != nil {
		return web.Fail(c, web.E(web.KindValidation, "malformed request body"))
	}
	item := &ServiceItem{ID: id, Name: req.Name, UnitPrice: req.UnitPrice, Active: true}
	if req.Active != nil {
		item.Active = *req.Active
	}
	if err := h.svc.Update(c.Request().Context(), item); err != nil {
		return web.Fail(c, err)
	}
	return web.OK(c, "service item updated", item)
}

func (h *Handler) Deactivate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return web.Fail(c, web.E(web.KindValidation, "invalid id"))
	}
	if err := h.svc.Deactivate(c.Request().Context(), id); err != nil {
		return web.Fail(c, err)
	}
	return web.OK(c, "service item deactivated", nil)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	activeOnly := c.QueryParam("all") == ""
	items, total, err := h.svc.List(c.Request().Context(), activeOnly, c.QueryParam("name"), pg.Limit, pg.Offset)
	if err != nil {
		return web.Fail(c, err)
	}
	return web.OK(c, "ok", pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
