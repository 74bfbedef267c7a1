package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type storePG struct{ pool *pgxpool.Pool }

// NewStorePG returns a Postgres-backed session store.
func NewStorePG(pool *pgxpool.Pool) Store { return &storePG{pool: pool} }

const sessCols = `id, role, identity_id, employee_role, csrf_token,
	otp_code, otp_target, otp_issued_at, login_at, last_activity`

func (r *storePG) Create(ctx context.Context, s *Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, role, identity_id, employee_role, csrf_token,
			otp_code, otp_target, otp_issued_at, login_at, last_activity)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		s.ID, s.Role, s.IdentityID, s.EmployeeRole, s.CSRFToken,
		s.OTPCode, s.OTPTarget, s.OTPIssuedAt, s.LoginAt, s.LastActivity)
	return err
}

func (r *storePG) Get(ctx context.Context, id uuid.UUID, role Role) (*Session, error) {
	var s Session
	err := r.pool.QueryRow(ctx, `SELECT `+sessCols+` FROM sessions WHERE id = $1 AND role = $2`, id, role).
		Scan(&s.ID, &s.Role, &s.IdentityID, &s.EmployeeRole, &s.CSRFToken,
			&s.OTPCode, &s.OTPTarget, &s.OTPIssuedAt, &s.LoginAt, &s.LastActivity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *storePG) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE sessions SET last_activity = $2 WHERE id = $1`, id, at)
	return err
}

func (r *storePG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (r *storePG) SetOTP(ctx context.Context, id uuid.UUID, code string, target uuid.UUID, issuedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE sessions SET otp_code = $2, otp_target = $3, otp_issued_at = $4 WHERE id = $1`,
		id, code, target, issuedAt)
	return err
}

func (r *storePG) ClearOTP(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE sessions SET otp_code = NULL, otp_target = NULL, otp_issued_at = NULL WHERE id = $1`, id)
	return err
}

func (r *storePG) Authenticate(ctx context.Context, id uuid.UUID, identityID uuid.UUID, employeeRole string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE sessions SET identity_id = $2, employee_role = $3, login_at = NOW(), last_activity = NOW()
		WHERE id = $1`, id, identityID, employeeRole)
	return err
}
