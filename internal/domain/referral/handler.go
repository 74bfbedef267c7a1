package referral

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/munihealth/portal/internal/domain/activity"
	"github.com/munihealth/portal/internal/platform/session"
	"github.com/munihealth/portal/internal/platform/web"
	"github.com/munihealth/portal/pkg/pagination"
)

type Handler struct {
	svc *Service
	log activity.Recorder
}

func NewHandler(svc *Service, log activity.Recorder) *Handler {
	return &Handler{svc: svc, log: log}
}

// RegisterRoutes mounts referral endpoints. Doctors create and transition
// referrals; records staff may also reinstate lapsed ones. Patients read
// their own.
func (h *Handler) RegisterRoutes(emp, pat *echo.Group) {
	doctor := emp.Group("", session.RequireEmployeeRole("doctor"))
	doctor.POST("/referrals", h.Create)
	doctor.POST("/referrals/:id/cancel", h.Cancel)
	doctor.POST("/referrals/:id/complete", h.Complete)

	staff := emp.Group("", session.RequireEmployeeRole("doctor", "records"))
	staff.POST("/referrals/:id/reinstate", h.Reinstate)
	staff.POST("/referrals/expire-due", h.ExpireDue)

	emp.GET("/referrals/:id", h.Get)
	emp.GET("/referrals", h.List)

	pat.GET("/my/referrals", h.ListMine)
}

type createRequest struct {
	PatientID    uuid.UUID  `json:"patient_id"`
	FacilityName string     `json:"facility_name"`
	Reason       string     `json:"reason"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return web.Fail(c, web.E(web.KindValidation, "malformed request body"))
	}

	sess := session.FromContext(c.Request().Context())
	ref := &Referral{
		PatientID:    req.PatientID,
		ReferredBy:   *sess.IdentityID,
		FacilityName: req.FacilityName,
		Reason:       req.Reason,
		ExpiresAt:    req.ExpiresAt,
	}
	if err := h.svc.Create(c.Request().Context(), ref); err != nil {
		return web.Fail(c, err)
	}

	h.log.Record(c.Request().Context(), "referral.create",
		"referral to "+ref.FacilityName, &ref.ID, c.RealIP())
	return web.Created(c, "referral created", ref)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return web.Fail(c, web.E(web.KindValidation, "invalid referral id"))
	}
	ref, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return web.Fail(c, err)
	}
	return web.OK(c, "ok", ref)
}

func (h *Handler) List(c echo.Context) error {
	patientID, err := uuid.Parse(c.QueryParam("patient_id"))
	if err != nil {
		return web.Fail(c, web.E(web.KindValidation, "patient_id query parameter is required"))
	}
	pg := pagination.FromContext(c)
	refs, total, err := h.svc.ListByPatient(c.Request().Context(), patientID,
		Status(c.QueryParam("status")), pg.Limit, pg.Offset)
	if err != nil {
		return web.Fail(c, err)
	}
	return web.OK(c, "ok", pagination.NewResponse(refs, total, pg.Limit, pg.Offset))
}

func (h *Handler) Reinstate(c echo.Context) error {
	return h.transition(c, "referral.reinstate", h.svc.Reinstate)
}

func (h *Handler) Cancel(c echo.Context) error {
	return h.transition(c, "referral.cancel", h.svc.Cancel)
}

func (h *Handler) Complete(c echo.Context) error {
	return h.transition(c, "referral.complete", h.svc.Complete)
}

func (h *Handler) transition(c echo.Context, action string, fn func(ctx context.Context, id uuid.UUID) (*Referral, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return web.Fail(c, web.E(web.KindValidation, "invalid referral id"))
	}
	ref, err := fn(c.Request().Context(), id)
	if err != nil {
		return web.Fail(c, err)
	}
	h.log.Record(c.Request().Context(), action, "referral now "+string(ref.Status), &ref.ID, c.RealIP())
	return web.OK(c, "referral "+string(ref.Status), ref)
}

func (h *Handler) ExpireDue(c echo.Context) error {
	n, err := h.svc.ExpireDue(c.Request().Context())
	if err != nil {
		return web.Fail(c, err)
	}
	h.log.Record(c.Request().Context(), "referral.expire_due", "expired due referrals", nil, c.RealIP())
	return web.OK(c, "expired due referrals", map[string]int64{"expired": n})
}

// ListMine serves the patient portal view.
func (h *Handler) ListMine(c echo.Context) error {
	sess := session.FromContext(c.Request().Context())
	pg := pagination.FromContext(c)
	refs, total, err := h.svc.ListByPatient(c.Request().Context(), *sess.IdentityID,
		Status(c.QueryParam("status")), pg.Limit, pg.Offset)
	if err != nil {
		return web.Fail(c, err)
	}
	return web.OK(c, "ok", pagination.NewResponse(refs, total, pg.Limit, pg.Offset))
}
