package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/munihealth/portal/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const invCols = `id, patient_id, visit_id, total_amount, discount_type, discount_amount,
	net_amount, paid_amount, status, created_by, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.PatientID, &inv.VisitID, &inv.TotalAmount, &inv.DiscountType,
		&inv.DiscountAmount, &inv.NetAmount, &inv.PaidAmount, &inv.Status, &inv.CreatedBy,
		&inv.CreatedAt, &inv.UpdatedAt)
	return &inv, err
}

func (r *repoPG) CreateInvoice(ctx context.Context, inv *Invoice, items []*LineItem) error {
	inv.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO billing (id, patient_id, visit_id, total_amount, discount_type,
			discount_amount, net_amount, paid_amount, status, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		inv.ID, inv.PatientID, inv.VisitID, inv.TotalAmount, inv.DiscountType,
		inv.DiscountAmount, inv.NetAmount, inv.PaidAmount, inv.Status, inv.CreatedBy)
	if err != nil {
		return err
	}

	for _, item := range items {
		item.ID = uuid.New()
		item.InvoiceID = inv.ID
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO billing_items (id, invoice_id, service_id, service_name, unit_price, quantity, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			item.ID, item.InvoiceID, item.ServiceID, item.ServiceName, item.UnitPrice, item.Quantity, item.Subtotal)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.conn(ctx).QueryRow(ctx, `SELECT `+invCols+` FROM billing WHERE id = $1`, id))
}

func (r *repoPG) GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.conn(ctx).QueryRow(ctx, `SELECT `+invCols+` FROM billing WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) GetLineItems(ctx context.Context, invoiceID uuid.UUID) ([]*LineItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, invoice_id, service_id, service_name, unit_price, quantity, subtotal
		FROM billing_items WHERE invoice_id = $1 ORDER BY service_name`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*LineItem
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ServiceID, &it.ServiceName,
			&it.UnitPrice, &it.Quantity, &it.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Invoice, int, error) {
	where := `WHERE patient_id = $1 AND ($2 = '' OR status = $2)`

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM billing `+where, patientID, status).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+invCols+` FROM billing `+where+` ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		patientID, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var invoices []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, total, rows.Err()
}

func (r *repoPG) AddPayment(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payments (id, invoice_id, amount, method, cashier_id, receipt_no)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.InvoiceID, p.Amount, p.Method, p.CashierID, p.ReceiptNo)
	return err
}

func (r *repoPG) CountPayments(ctx context.Context, invoiceID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE invoice_id = $1`, invoiceID).Scan(&n)
	return n, err
}

func (r *repoPG) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, invoice_id, amount, method, cashier_id, receipt_no, created_at
		FROM payments WHERE invoice_id = $1 ORDER BY created_at`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.CashierID, &p.ReceiptNo, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}

func (r *repoPG) UpdateAmounts(ctx context.Context, id uuid.UUID, paidAmount float64, status Status) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE billing SET paid_amount = $2, status = $3, updated_at = NOW() WHERE id = $1`,
		id, paidAmount, status)
	return err
}

func (r *repoPG) DailyCollection(ctx context.Context, day time.Time) ([]*MethodTotal, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT method, COUNT(*), COALESCE(SUM(amount), 0)
		FROM payments
		WHERE created_at >= $1 AND created_at < $1 + INTERVAL '1 day'
		GROUP BY method ORDER BY method`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []*MethodTotal
	for rows.Next() {
		var mt MethodTotal
		if err := rows.Scan(&mt.Method, &mt.Count, &mt.Total); err != nil {
			return nil, err
		}
		totals = append(totals, &mt)
	}
	return totals, rows.Err()
}
