package referral

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Referral) error
	GetByID(ctx context.Context, id uuid.UUID) (*Referral, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Referral, int, error)
	// UpdateStatusIf conditionally moves the referral to `to` only when its
	// current status is one of `from`, returning the number of rows changed.
	// The WHERE clause makes the transition atomic against racing requests.
	UpdateStatusIf(ctx context.Context, id uuid.UUID, to Status, from []Status) (int64, error)
	// ExpireDue marks active referrals whose expiry date has passed.
	ExpireDue(ctx context.Context) (int64, error)
}
