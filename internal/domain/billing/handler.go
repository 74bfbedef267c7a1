package billing

import (
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

// RegisterRoutes mounts billing endpoints. Invoice creation and payments are
// cashier work; patients get a read-only view of their own invoices.
func (h *Handler) RegisterRoutes(emp, pat *echo.Group) {
	cashier := emp.Group("", session.RequireEmployeeRole("cashier"))
	cashier.POST("/invoices", h.CreateInvoice)
	cashier.POST("/invoices/:id/payments", h.ApplyPayment)
	cashier.GET("/billing/daily-summary", h.DailyCollection)

	emp.GET("/invoices/:id", h.GetInvoice)
	emp.GET("/invoices", h.ListInvoices)
	emp.GET("/invoices/:id/payments", h.ListPayments)

	pat.GET("/my/invoices", h.ListMyInvoices)
	pat.GET("/my/invoices/:id", h.GetMyInvoice)
}

type createInvoiceRequest struct {
	PatientID    uuid.UUID    `json:"patient_id"`
	VisitID      uuid.UUID    `json:"visit_id"`
	Items        []ItemInput  `json:"items"`
	DiscountType DiscountType `json:"discount_type"`
}

func (h *Handler) CreateInvoice(c echo.Context) error {
	var req createInvoiceRequest
	if err := c.Bind(&req); err != nil {
		return web.Fail(c, web.E(web.KindValidation, "malformed request body"))
	}

	sess := session.FromContext(c.Request().Context())
	inv, items, err := h.svc.CreateInvoice(c.Request().Context(),
		req.PatientID, req.VisitID, req.Items, req.DiscountType, *sess.IdentityID)
	if err != nil {
		return web.Fail(c, err)
	}

	h.log.Record(c.Request().Context(), "invoice.create",
		"invoice created for patient "+req.PatientID.String(), &inv.ID, c.RealIP())
	return web.Created(c, "invoice created", &InvoiceDetail{Invoice: inv, Items: items})
}

type applyPaymentRequest struct {
	Amount float64 `json:"amount"`
	Method string  `json:"method"`
}

func (h *Handler) ApplyPayment(c echo.Context) error {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return web.Fail(c, web.E(web.KindValidation, "invalid invoice id"))
	}
	var req applyPaymentRequest
	if err := c.Bind(&req); err != nil {
		return web.Fail(c, web.E(web.KindValidation, "malformed request body"))
	}

	sess := session.FromContext(c.Request().Context())
	result, err := h.svc.ApplyPayment(c.Request().Context(), invoiceID, req.Amount, req.Method, *sess.IdentityID)
	if err != nil {
		return web.Fail(c, err)
	}

	h.log.Record(c.Request().Context(), "payment.apply",
		"receipt "+result.Payment.ReceiptNo, &invoiceID, c.RealIP())
	return web.OK(c, "payment recorded", result)
}

func (h *Handler) GetInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return web.Fail(c, web.E(web.KindValidation, "invalid invoice id"))
	}
	detail, err := h.svc.GetInvoice(c.Request().Context(), id)
	if err != nil {
		return web.Fail(c, err)
	}
	return web.OK(c, "ok", detail)
}

func (h *Handler) ListInvoices(c echo.Context) error {
	patientID, err := uuid.Parse(c.QueryParam("patient_id"))
	if err != nil {
		return web.Fail(c, web.E(web.KindValidation, "patient_id query parameter is required"))
	}
	pg := pagination.FromContext(c)
	invoices, total, err := h.svc.ListByPatient(c.Request().Context(), patientID,
		Status(c.QueryParam("status")), pg.Limit, pg.Offset)
	if err != nil {
		return web.Fail(c, err)
	}
	return web.OK(c, "ok", pagination.NewResponse(invoices, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListPayments(c echo.Context) error {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return web.Fail(c, web.E(web.KindValidation, "invalid invoice id"))
	}
	payments, err := h.svc.ListPayments(c.Request().Context(), invoiceID)
	if err != nil {
		return web.Fail(c, err)
	}
	return web.OK(c, "ok", payments)
}

// startOfDay keeps the clock's own location, so the default "today" follows
// the office clock rather than UTC midnight.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func (h *Handler) DailyCollection(c echo.Context) error {
	day := startOfDay(time.Now())
	if raw := c.QueryParam("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return web.Fail(c, web.E(web.KindValidation, "invalid date, want YYYY-MM-DD"))
		}
		day = parsed
	}
	totals, err := h.svc.DailyCollection(c.Request().Context(), day)
	if err != nil {
		return web.Fail(c, err)
	}
	return web.OK(c, "ok", totals)
}

// ListMyInvoices serves the patient portal view: only the caller's invoices.
func (h *Handler) ListMyInvoices(c echo.Context) error {
	sess := session.FromContext(c.Request().Context())
	pg := pagination.FromContext(c)
	invoices, total, err := h.svc.ListByPatient(c.Request().Context(), *sess.IdentityID,
		Status(c.QueryParam("status")), pg.Limit, pg.Offset)
	if err != nil {
		return web.Fail(c, err)
	}
	return web.OK(c, "ok", pagination.NewResponse(invoices, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetMyInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return web.Fail(c, web.E(web.KindValidation, "invalid invoice id"))
	}
	detail, err := h.svc.GetInvoice(c.Request().Context(), id)
	if err != nil {
		return web.Fail(c, err)
	}
	sess := session.FromContext(c.Request().Context())
	if detail.Invoice.PatientID != *sess.IdentityID {
		// Do not reveal that the invoice exists.
		return web.Fail(c, web.E(web.KindNotFound, "invoice not found"))
	}
	return web.OK(c, "ok", detail)
}
