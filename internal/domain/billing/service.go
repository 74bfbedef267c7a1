package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/munihealth/portal/internal/domain/catalog"
	"github.com/munihealth/portal/internal/platform/web"
)

// TxFunc runs fn inside a database transaction; repository calls made with
// the context passed to fn join it.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	invoices Repository
	services Catalog
	inTx     TxFunc
}

func NewService(invoices Repository, services Catalog, inTx TxFunc) *Service {
	return &Service{invoices: invoices, services: services, inTx: inTx}
}

// ItemInput is one submitted invoice line: a service id and a quantity.
type ItemInput struct {
	ServiceID uuid.UUID `json:"service_id"`
	Quantity  int       `json:"quantity"`
}

var validDiscountTypes = map[DiscountType]bool{
	DiscountNone: true, DiscountSenior: true, DiscountPWD: true,
}

var validMethods = map[string]bool{
	"cash": true, "check": true, "online": true,
}

// CreateInvoice validates and prices the submitted items, computes the
// discount, and persists the header plus line items atomically. Entries with
// a non-positive quantity or an unknown/inactive service id are dropped
// before validation; an invoice with no surviving items is rejected.
func (s *Service) CreateInvoice(ctx context.Context, patientID, visitID uuid.UUID, items []ItemInput, discountType DiscountType, createdBy uuid.UUID) (*Invoice, []*LineItem, error) {
	if patientID == uuid.Nil {
		return nil, nil, web.E(web.KindValidation, "patient_id is required")
	}
	if visitID == uuid.Nil {
		return nil, nil, web.E(web.KindValidation, "visit_id is required")
	}
	if discountType == "" {
		discountType = DiscountNone
	}
	if !validDiscountTypes[discountType] {
		return nil, nil, web.Ef(web.KindValidation, "invalid discount type: %s", discountType)
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, in := range items {
		if in.Quantity > 0 && in.ServiceID != uuid.Nil {
			ids = append(ids, in.ServiceID)
		}
	}

	catalogItems, err := s.lookupServices(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	var lines []*LineItem
	total := 0.0
	for _, in := range items {
		if in.Quantity <= 0 {
			continue
		}
		svc, ok := catalogItems[in.ServiceID]
		if !ok || !svc.Active {
			continue
		}
		subtotal := Round2(svc.UnitPrice * float64(in.Quantity))
		lines = append(lines, &LineItem{
			ServiceID:   svc.ID,
			ServiceName: svc.Name,
			UnitPrice:   svc.UnitPrice,
			Quantity:    in.Quantity,
			Subtotal:    subtotal,
		})
		total += subtotal
	}
	if len(lines) == 0 {
		return nil, nil, web.E(web.KindValidation, "invoice has no valid line items")
	}

	total = Round2(total)
	discount := 0.0
	if discountType.Discounted() {
		discount = Round2(total * DiscountRate)
	}

	inv := &Invoice{
		PatientID:      patientID,
		VisitID:        visitID,
		TotalAmount:    total,
		DiscountType:   discountType,
		DiscountAmount: discount,
		NetAmount:      Round2(total - discount),
		PaidAmount:     0,
		Status:         StatusUnpaid,
		CreatedBy:      createdBy,
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		return s.invoices.CreateInvoice(ctx, inv, lines)
	})
	if err != nil {
		return nil, nil, web.Wrap(web.KindInternal, "could not save invoice", err)
	}
	return inv, lines, nil
}

// PaymentResult is what a cashier gets back after applying a payment.
type PaymentResult struct {
	Payment      *Payment `json:"payment"`
	Invoice      *Invoice `json:"invoice"`
	ChangeAmount float64  `json:"change_amount"`
}

// ApplyPayment applies a payment against an invoice's remaining balance.
// The read-validate-write sequence runs in a single transaction with the
// invoice row locked, so two concurrent payments cannot both pass the
// remaining-balance check against a stale value.
func (s *Service) ApplyPayment(ctx context.Context, invoiceID uuid.UUID, amount float64, method string, cashierID uuid.UUID) (*PaymentResult, error) {
	if amount <= 0 {
		return nil, web.E(web.KindValidation, "payment amount must be positive")
	}
	if !validMethods[method] {
		return nil, web.Ef(web.KindValidation, "invalid payment method: %s", method)
	}

	var result *PaymentResult
	err := s.inTx(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return web.E(web.KindNotFound, "invoice not found")
		}
		if inv.Status == StatusPaid {
			return web.E(web.KindInvalidTransition, "invoice is already fully paid")
		}

		remaining := inv.Remaining()
		if amount > remaining+Tolerance {
			return web.Ef(web.KindConflict, "amount exceeds remaining balance of %.2f", remaining)
		}

		seq, err := s.invoices.CountPayments(ctx, invoiceID)
		if err != nil {
			return web.Wrap(web.KindInternal, "could not record payment", err)
		}

		now := time.Now()
		payment := &Payment{
			InvoiceID: inv.ID,
			Amount:    amount,
			Method:    method,
			CashierID: cashierID,
			ReceiptNo: ReceiptNumber(inv.ID, now, seq+1),
			CreatedAt: now,
		}
		if err := s.invoices.AddPayment(ctx, payment); err != nil {
			return web.Wrap(web.KindInternal, "could not record payment", err)
		}

		inv.PaidAmount = Round2(inv.PaidAmount + amount)
		if inv.PaidAmount >= inv.NetAmount-Tolerance {
			inv.Status = StatusPaid
		} else {
			inv.Status = StatusPartial
		}
		if err := s.invoices.UpdateAmounts(ctx, inv.ID, inv.PaidAmount, inv.Status); err != nil {
			return web.Wrap(web.KindInternal, "could not update invoice", err)
		}

		change := amount - remaining
		if change < 0 {
			change = 0
		}
		result = &PaymentResult{Payment: payment, Invoice: inv, ChangeAmount: Round2(change)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// InvoiceDetail bundles an invoice with its line items and payments.
type InvoiceDetail struct {
	Invoice  *Invoice    `json:"invoice"`
	Items    []*LineItem `json:"items"`
	Payments []*Payment  `json:"payments"`
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*InvoiceDetail, error) {
	inv, err := s.invoices.GetInvoice(ctx, id)
	if err != nil {
		return nil, web.E(web.KindNotFound, "invoice not found")
	}
	items, err := s.invoices.GetLineItems(ctx, id)
	if err != nil {
		return nil, web.Wrap(web.KindInternal, "could not load invoice items", err)
	}
	payments, err := s.invoices.ListPayments(ctx, id)
	if err != nil {
		return nil, web.Wrap(web.KindInternal, "could not load payments", err)
	}
	return &InvoiceDetail{Invoice: inv, Items: items, Payments: payments}, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Invoice, int, error) {
	if status != "" && status != StatusUnpaid && status != StatusPartial && status != StatusPaid {
		return nil, 0, web.Ef(web.KindValidation, "invalid status filter: %s", status)
	}
	invoices, total, err := s.invoices.ListByPatient(ctx, patientID, status, limit, offset)
	if err != nil {
		return nil, 0, web.Internal(err)
	}
	return invoices, total, nil
}

func (s *Service) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	if _, err := s.invoices.GetInvoice(ctx, invoiceID); err != nil {
		return nil, web.E(web.KindNotFound, "invoice not found")
	}
	payments, err := s.invoices.ListPayments(ctx, invoiceID)
	if err != nil {
		return nil, web.Internal(err)
	}
	return payments, nil
}

// DailyCollection sums the day's payments by method for the cashier's
// end-of-day report.
func (s *Service) DailyCollection(ctx context.Context, day time.Time) ([]*MethodTotal, error) {
	totals, err := s.invoices.DailyCollection(ctx, day)
	if err != nil {
		return nil, web.Internal(err)
	}
	return totals, nil
}

func (s *Service) lookupServices(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*catalog.ServiceItem, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]*catalog.ServiceItem{}, nil
	}
	items, err := s.services.GetByIDs(ctx, ids)
	if err != nil {
		return nil, web.Wrap(web.KindInternal, "could not resolve services", err)
	}
	return items, nil
}
