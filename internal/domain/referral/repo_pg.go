package referral

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

const refCols = `id, patient_id, referred_by, facility_name, reason, status, expires_at, created_at, updated_at`

func scanReferral(row pgx.Row) (*Referral, error) {
	var ref Referral
	err := row.Scan(&ref.ID, &ref.PatientID, &ref.ReferredBy, &ref.FacilityName,
		&ref.Reason, &ref.Status, &ref.ExpiresAt, &ref.CreatedAt, &ref.UpdatedAt)
	return &ref, err
}

func (r *repoPG) Create(ctx context.Context, ref *Referral) error {
	ref.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO referrals (id, patient_id, referred_by, facility_name, reason, status, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		ref.ID, ref.PatientID, ref.ReferredBy, ref.FacilityName, ref.Reason, ref.Status, ref.ExpiresAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Referral, error) {
	return scanReferral(r.conn(ctx).QueryRow(ctx, `SELECT `+refCols+` FROM referrals WHERE id = $1`, id))
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Referral, int, error) {
	where := `WHERE patient_id = $1 AND ($2 = '' OR status = $2)`

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM referrals `+where, patientID, status).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+refCols+` FROM referrals `+where+` ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		patientID, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var refs []*Referral
	for rows.Next() {
		ref, err := scanReferral(rows)
		if err != nil {
			return nil, 0, err
		}
		refs = append(refs, ref)
	}
	return refs, total, rows.Err()
}

func (r *repoPG) UpdateStatusIf(ctx context.Context, id uuid.UUID, to Status, from []Status) (int64, error) {
	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE referrals SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)`,
		id, to, fromStrs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) ExpireDue(ctx context.Context) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE referrals SET status = 'expired', updated_at = NOW()
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
