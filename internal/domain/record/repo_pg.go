package record

import (
	"context"

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

const visitCols = `id, patient_id, visit_date, seen_by, notes, created_at`

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	err := row.Scan(&v.ID, &v.PatientID, &v.VisitDate, &v.SeenBy, &v.Notes, &v.CreatedAt)
	return &v, err
}

func (r *repoPG) CreateVisit(ctx context.Context, v *Visit) error {
	v.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO visits (id, patient_id, visit_date, seen_by, notes)
		VALUES ($1, $2, $3, $4, $5)`,
		v.ID, v.PatientID, v.VisitDate, v.SeenBy, v.Notes)
	return err
}

func (r *repoPG) GetVisit(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return scanVisit(r.conn(ctx).QueryRow(ctx, `SELECT `+visitCols+` FROM visits WHERE id = $1`, id))
}

func (r *repoPG) ListVisits(ctx context.Context, patientID uuid.UUID, limit int) ([]*Visit, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+visitCols+` FROM visits
		WHERE patient_id = $1
		ORDER BY visit_date DESC
		LIMIT NULLIF($2, 0)`, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

const rxCols = `id, patient_id, visit_id, medication, dosage, instructions, prescribed_by, created_at`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.PatientID, &p.VisitID, &p.Medication, &p.Dosage, &p.Instructions, &p.PrescribedBy, &p.CreatedAt)
	return &p, err
}

func (r *repoPG) CreatePrescription(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO prescriptions (id, patient_id, visit_id, medication, dosage, instructions, prescribed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.PatientID, p.VisitID, p.Medication, p.Dosage, p.Instructions, p.PrescribedBy)
	return err
}

func (r *repoPG) ListPrescriptions(ctx context.Context, patientID uuid.UUID, limit int) ([]*Prescription, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+rxCols+` FROM prescriptions
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT NULLIF($2, 0)`, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prescriptions []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		prescriptions = append(prescriptions, p)
	}
	return prescriptions, rows.Err()
}

const labCols = `id, patient_id, visit_id, test_name, status, result, ordered_by, created_at`

func scanLabOrder(row pgx.Row) (*LabOrder, error) {
	var o LabOrder
	err := row.Scan(&o.ID, &o.PatientID, &o.VisitID, &o.TestName, &o.Status, &o.Result, &o.OrderedBy, &o.CreatedAt)
	return &o, err
}

func (r *repoPG) CreateLabOrder(ctx context.Context, o *LabOrder) error {
	o.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO lab_orders (id, patient_id, visit_id, test_name, status, ordered_by)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		o.ID, o.PatientID, o.VisitID, o.TestName, o.Status, o.OrderedBy)
	return err
}

func (r *repoPG) UpdateLabOrder(ctx context.Context, o *LabOrder) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_orders SET status = $2, result = $3 WHERE id = $1`,
		o.ID, o.Status, o.Result)
	return err
}

func (r *repoPG) GetLabOrder(ctx context.Context, id uuid.UUID) (*LabOrder, error) {
	return scanLabOrder(r.conn(ctx).QueryRow(ctx, `SELECT `+labCols+` FROM lab_orders WHERE id = $1`, id))
}

func (r *repoPG) ListLabOrders(ctx context.Context, patientID uuid.UUID, limit int) ([]*LabOrder, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+labCols+` FROM lab_orders
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT NULLIF($2, 0)`, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*LabOrder
	for rows.Next() {
		o, err := scanLabOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
