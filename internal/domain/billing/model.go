package billing

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tolerance absorbs floating-point rounding in currency math. It is applied
// to both the overpayment check and the paid/partial threshold, never to one
// without the other.
const Tolerance = 0.01

// DiscountRate applied to the invoice total for senior/PWD patients, per the
// municipal ordinance.
const DiscountRate = 0.20

// DiscountType determines a fixed-percentage reduction of the invoice total.
type DiscountType string

const (
	DiscountNone   DiscountType = "none"
	DiscountSenior DiscountType = "senior"
	DiscountPWD    DiscountType = "pwd"
)

// Discounted reports whether this type earns the ordinance discount.
func (d DiscountType) Discounted() bool {
	return d == DiscountSenior || d == DiscountPWD
}

// Status of an invoice. Transitions are monotonic:
// unpaid → partial → paid, never backwards.
type Status string

const (
	StatusUnpaid  Status = "unpaid"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
)

// Invoice maps to the billing table. It owns its line items and is the
// aggregation root for payments.
type Invoice struct {
	ID             uuid.UUID    `db:"id" json:"id"`
	PatientID      uuid.UUID    `db:"patient_id" json:"patient_id"`
	VisitID        uuid.UUID    `db:"visit_id" json:"visit_id"`
	TotalAmount    float64      `db:"total_amount" json:"total_amount"`
	DiscountType   DiscountType `db:"discount_type" json:"discount_type"`
	DiscountAmount float64      `db:"discount_amount" json:"discount_amount"`
	NetAmount      float64      `db:"net_amount" json:"net_amount"`
	PaidAmount     float64      `db:"paid_amount" json:"paid_amount"`
	Status         Status       `db:"status" json:"status"`
	CreatedBy      uuid.UUID    `db:"created_by" json:"created_by"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

// Remaining returns the unpaid balance.
func (inv *Invoice) Remaining() float64 {
	return Round2(inv.NetAmount - inv.PaidAmount)
}

// LineItem maps to the billing_items table. Name and unit price are
// snapshotted from the catalog at invoice creation.
type LineItem struct {
	ID          uuid.UUID `db:"id" json:"id"`
	InvoiceID   uuid.UUID `db:"invoice_id" json:"invoice_id"`
	ServiceID   uuid.UUID `db:"service_id" json:"service_id"`
	ServiceName string    `db:"service_name" json:"service_name"`
	UnitPrice   float64   `db:"unit_price" json:"unit_price"`
	Quantity    int       `db:"quantity" json:"quantity"`
	Subtotal    float64   `db:"subtotal" json:"subtotal"`
}

// Payment maps to the payments table. Payments are append-only; the sum of an
// invoice's payments equals its paid_amount.
type Payment struct {
	ID        uuid.UUID `db:"id" json:"id"`
	InvoiceID uuid.UUID `db:"invoice_id" json:"invoice_id"`
	Amount    float64   `db:"amount" json:"amount"`
	Method    string    `db:"method" json:"method"`
	CashierID uuid.UUID `db:"cashier_id" json:"cashier_id"`
	ReceiptNo string    `db:"receipt_no" json:"receipt_no"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// MethodTotal is one row of the cashier's daily collection summary.
type MethodTotal struct {
	Method string  `db:"method" json:"method"`
	Count  int     `db:"count" json:"count"`
	Total  float64 `db:"total" json:"total"`
}

// Round2 rounds to two decimal places, the portal's currency precision.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ReceiptNumber derives the human-readable receipt identifier from the
// invoice id, payment date and the payment's sequence within the invoice,
// e.g. OR-20260831-3F2A9C-02. Uniqueness is enforced by the payments table.
func ReceiptNumber(invoiceID uuid.UUID, at time.Time, seq int) string {
	short := strings.ToUpper(strings.ReplaceAll(invoiceID.String(), "-", "")[:6])
	return fmt.Sprintf("OR-%s-%s-%02d", at.Format("20060102"), short, seq)
}
