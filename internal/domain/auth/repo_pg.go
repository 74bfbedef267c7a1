package auth

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

const empCols = `id, username, password_hash, full_name, role, active, created_at, updated_at`

func scanEmployee(row pgx.Row) (*Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.Username, &e.PasswordHash, &e.FullName, &e.Role, &e.Active, &e.CreatedAt, &e.UpdatedAt)
	return &e, err
}

func (r *repoPG) GetEmployeeByUsername(ctx context.Context, username string) (*Employee, error) {
	return scanEmployee(r.conn(ctx).QueryRow(ctx,
		`SELECT `+empCols+` FROM employees WHERE username = $1`, username))
}

func (r *repoPG) GetEmployeeByID(ctx context.Context, id uuid.UUID) (*Employee, error) {
	return scanEmployee(r.conn(ctx).QueryRow(ctx,
		`SELECT `+empCols+` FROM employees WHERE id = $1`, id))
}

func (r *repoPG) UpdateEmployeePassword(ctx context.Context, id uuid.UUID, hash string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE employees SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	return err
}

const patCols = `id, email, password_hash, full_name, birth_date, phone, active, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.FullName, &p.BirthDate, &p.Phone, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) GetPatientByEmail(ctx context.Context, email string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patCols+` FROM patients WHERE LOWER(email) = LOWER($1)`, email))
}

func (r *repoPG) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patCols+` FROM patients WHERE id = $1`, id))
}

func (r *repoPG) UpdatePatientPassword(ctx context.Context, id uuid.UUID, hash string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE patients SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	return err
}

func (r *repoPG) CountRecentFailures(ctx context.Context, ipHash string, since time.Time) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM login_attempts WHERE ip_hash = $1 AND created_at >= $2`,
		ipHash, since).Scan(&n)
	return n, err
}

func (r *repoPG) RecordFailure(ctx context.Context, ipHash string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO login_attempts (id, ip_hash) VALUES ($1, $2)`, uuid.New(), ipHash)
	return err
}

func (r *repoPG) ClearFailures(ctx context.Context, ipHash string) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM login_attempts WHERE ip_hash = $1`, ipHash)
	return err
}
