package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/munihealth/portal/internal/domain/catalog"
)

type Repository interface {
	// CreateInvoice persists the header and all line items. Callers wrap it
	// in a transaction so the rows land together or not at all.
	CreateInvoice(ctx context.Context, inv *Invoice, items []*LineItem) error
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// GetInvoiceForUpdate locks the invoice row for the rest of the
	// transaction, serializing concurrent payments on the same invoice.
	GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetLineItems(ctx context.Context, invoiceID uuid.UUID) ([]*LineItem, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Invoice, int, error)

	AddPayment(ctx context.Context, p *Payment) error
	CountPayments(ctx context.Context, invoiceID uuid.UUID) (int, error)
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error)
	UpdateAmounts(ctx context.Context, id uuid.UUID, paidAmount float64, status Status) error

	DailyCollection(ctx context.Context, day time.Time) ([]*MethodTotal, error)
}

// Catalog is the slice of the service-item catalog billing needs: resolving
// submitted service ids to current prices.
type Catalog interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*catalog.ServiceItem, error)
}
