package record

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/munihealth/portal/internal/domain/activity"
	"github.com/munihealth/portal/internal/platform/session"
	"github.com/munihealth/portal/internal/platform/web"
)

type Handler struct {
	svc *Service
	log activity.Recorder
}

func NewHandler(svc *Service, log activity.Recorder) *Handler {
	return &Handler{svc: svc, log: log}
}

// RegisterRoutes mounts the clinical record surface. Aggregated records are
// readable by doctors and records staff; patients read their own. The export
// group carries bearer-token auth for the data warehouse and is wired
// separately.
func (h *Handler) RegisterRoutes(emp, pat, export *echo.Group) {
	clinical := emp.Group("", session.RequireEmployeeRole("doctor", "records"))
	clinical.GET("/patients/:id/records", h.Get)
	clinical.POST("/visits", h.CreateVisit)
	clinical.GET("/visits/:id", h.GetVisit)

	doctor := emp.Group("", session.RequireEmployeeRole("doctor"))
	doctor.POST("/prescriptions", h.CreatePrescription)
	doctor.POST("/lab-orders", h.CreateLabOrder)
	doctor.POST("/lab-orders/:id/complete", h.CompleteLabOrder)

	pat.GET("/my/records", h.GetMine)

	export.GET("/patients/:id/records", h.Export)
}

// sectionsParam reads the comma-separated "sections" query parameter. Absent
// means every section.
func sectionsParam(c echo.Context) []string {
	raw := strings.TrimSpace(c.QueryParam("sections"))
	if raw == "" {
		return nil
	}
	var out []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return web.Fail(c, web.E(web.KindValidation, "invalid patient id"))
	}
	rec, err := h.svc.Aggregate(c.Request().Context(), id, sectionsParam(c), c.QueryParam("verbose") == "true")
	if err != nil {
		return web.Fail(c, err)
	}
	h.log.Record(c.Request().Context(), "record.view", "patient record viewed", &id, c.RealIP())
	return web.OK(c, "ok", rec)
}

func (h *Handler) GetMine(c echo.Context) error {
	sess := session.FromContext(c.Request().Context())
	rec, err := h.svc.Aggregate(c.Request().Context(), *sess.IdentityID, sectionsParam(c), c.QueryParam("verbose") == "true")
	if err != nil {
		return web.Fail(c, err)
	}
	return web.OK(c, "ok", rec)
}

// Export serves the warehouse feed. Always verbose, always every section.
func (h *Handler) Export(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return web.Fail(c, web.E(web.KindValidation, "invalid patient id"))
	}
	rec, err := h.svc.Aggregate(c.Request().Context(), id, nil, true)
	if err != nil {
		return web.Fail(c, err)
	}
	h.log.Record(c.Request().Context(), "record.export", "patient record exported", &id, c.RealIP())
	return web.OK(c, "ok", rec)
}

type visitRequest struct {
	PatientID uuid.UUID  `json:"patient_id"`
	VisitDate *time.Time `json:"visit_date,omitempty"`
	Notes     string     `json:"notes"`
}

func (h *Handler) CreateVisit(c echo.Context) error {
	var req visitRequest
	if err := c.Bind(&req); err != nil {
		return web.Fail(c, web.E(web.KindValidation, "malformed request body"))
	}

	sess := session.FromContext(c.Request().Context())
	v := &Visit{PatientID: req.PatientID, SeenBy: *sess.IdentityID, Notes: req.Notes}
	if req.VisitDate != nil {
		v.VisitDate = *req.VisitDate
	}
	if err := h.svc.CreateVisit(c.Request().Context(), v); err != nil {
		return web.Fail(c, err)
	}
	h.log.Record(c.Request().Context(), "visit.create", "visit recorded", &v.ID, c.RealIP())
	return web.Created(c, "visit recorded", v)
}

func (h *Handler) GetVisit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return web.Fail(c, web.E(web.KindValidation, "invalid visit id"))
	}
	v, err := h.svc.GetVisit(c.Request().Context(), id)
	if err != nil {
		return web.Fail(c, err)
	}
	return web.OK(c, "ok", v)
}

type prescriptionRequest struct {
	PatientID    uuid.UUID  `json:"patient_id"`
	VisitID      *uuid.UUID `json:"visit_id,omitempty"`
	Medication   string     `json:"medication"`
	Dosage       string     `json:"dosage"`
	Instructions string     `json:"instructions"`
}

func (h *Handler) CreatePrescription(c echo.Context) error {
	var req prescriptionRequest
	if err := c.Bind(&req); err != nil {
		return web.Fail(c, web.E(web.KindValidation, "malformed request body"))
	}

	sess := session.FromContext(c.Request().Context())
	p := &Prescription{
		PatientID:    req.PatientID,
		VisitID:      req.VisitID,
		Medication:   req.Medication,
		Dosage:       req.Dosage,
		Instructions: req.Instructions,
		PrescribedBy: *sess.IdentityID,
	}
	if err := h.svc.CreatePrescription(c.Request().Context(), p); err != nil {
		return web.Fail(c, err)
	}
	h.log.Record(c.Request().Context(), "prescription.create", "prescription for "+p.Medication, &p.ID, c.RealIP())
	return web.Created(c, "prescription recorded", p)
}

type labOrderRequest struct {
	PatientID uuid.UUID  `json:"patient_id"`
	VisitID   *uuid.UUID `json:"visit_id,omitempty"`
	TestName  string     `json:"test_name"`
}

func (h *Handler) CreateLabOrder(c echo.Context) error {
	var req labOrderRequest
	if err := c.Bind(&req); err != nil {
		return web.Fail(c, web.E(web.KindValidation, "malformed request body"))
	}

	sess := session.FromContext(c.Request().Context())
	o := &LabOrder{PatientID: req.PatientID, VisitID: req.VisitID, TestName: req.TestName, OrderedBy: *sess.IdentityID}
	if err := h.svc.CreateLabOrder(c.Request().Context(), o); err != nil {
		return web.Fail(c, err)
	}
	h.log.Record(c.Request().Context(), "lab_order.create", "lab order for "+o.TestName, &o.ID, c.RealIP())
	return web.Created(c, "lab order recorded", o)
}

type labResultRequest struct {
	Result string `json:"result"`
}

func (h *Handler) CompleteLabOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return web.Fail(c, web.E(web.KindValidation, "invalid lab order id"))
	}
	var req labResultRequest
	if err := c.Bind(&req); err != nil {
		return web.Fail(c, web.E(web.KindValidation, "malformed request body"))
	}
	if req.Result == "" {
		return web.Fail(c, web.E(web.KindValidation, "result is required"))
	}

	o, err := h.svc.CompleteLabOrder(c.Request().Context(), id, req.Result)
	if err != nil {
		return web.Fail(c, err)
	}
	h.log.Record(c.Request().Context(), "lab_order.complete", "lab order completed", &o.ID, c.RealIP())
	return web.OK(c, "lab order completed", o)
}
