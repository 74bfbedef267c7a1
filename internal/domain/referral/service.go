package referral

import (
	"context"

	"github.com/google/uuid"

	"github.com/munihealth/portal/internal/platform/web"
)

type Service struct {
	referrals Repository
}

func NewService(referrals Repository) *Service {
	return &Service{referrals: referrals}
}

func (s *Service) Create(ctx context.Context, ref *Referral) error {
	if ref.PatientID == uuid.Nil {
		return web.E(web.KindValidation, "patient_id is required")
	}
	if ref.FacilityName == "" {
		return web.E(web.KindValidation, "facility_name is required")
	}
	if ref.Reason == "" {
		return web.E(web.KindValidation, "reason is required")
	}
	ref.Status = StatusActive
	if err := s.referrals.Create(ctx, ref); err != nil {
		return web.Internal(err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Referral, error) {
	ref, err := s.referrals.GetByID(ctx, id)
	if err != nil {
		return nil, web.E(web.KindNotFound, "referral not found")
	}
	return ref, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Referral, int, error) {
	if status != "" && !validStatuses[status] {
		return nil, 0, web.Ef(web.KindValidation, "invalid status filter: %s", status)
	}
	refs, total, err := s.referrals.ListByPatient(ctx, patientID, status, limit, offset)
	if err != nil {
		return nil, 0, web.Internal(err)
	}
	return refs, total, nil
}

// Reinstate moves a cancelled or expired referral back to active. The
// conditional update runs first so racing requests cannot both win; the
// follow-up read only classifies why nothing changed.
func (s *Service) Reinstate(ctx context.Context, id uuid.UUID) (*Referral, error) {
	rows, err := s.referrals.UpdateStatusIf(ctx, id, StatusActive, []Status{StatusCancelled, StatusExpired})
	if err != nil {
		return nil, web.Wrap(web.KindInternal, "could not reinstate referral", err)
	}
	if rows == 0 {
		ref, err := s.referrals.GetByID(ctx, id)
		if err != nil {
			return nil, web.E(web.KindNotFound, "referral not found")
		}
		if ref.Status == StatusActive {
			return nil, web.E(web.KindNoOp, "referral is already active")
		}
		return nil, web.Ef(web.KindInvalidTransition, "cannot reinstate a %s referral", ref.Status)
	}
	ref, err := s.referrals.GetByID(ctx, id)
	if err != nil {
		return nil, web.Internal(err)
	}
	return ref, nil
}

// Cancel moves an active referral to cancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Referral, error) {
	return s.forwardTransition(ctx, id, StatusCancelled)
}

// Complete moves an active referral to completed.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Referral, error) {
	return s.forwardTransition(ctx, id, StatusCompleted)
}

func (s *Service) forwardTransition(ctx context.Context, id uuid.UUID, to Status) (*Referral, error) {
	rows, err := s.referrals.UpdateStatusIf(ctx, id, to, []Status{StatusActive})
	if err != nil {
		return nil, web.Wrap(web.KindInternal, "could not update referral", err)
	}
	if rows == 0 {
		ref, err := s.referrals.GetByID(ctx, id)
		if err != nil {
			return nil, web.E(web.KindNotFound, "referral not found")
		}
		if ref.Status == to {
			return nil, web.Ef(web.KindNoOp, "referral is already %s", to)
		}
		return nil, web.Ef(web.KindInvalidTransition, "cannot move a %s referral to %s", ref.Status, to)
	}
	ref, err := s.referrals.GetByID(ctx, id)
	if err != nil {
		return nil, web.Internal(err)
	}
	return ref, nil
}

// ExpireDue sweeps active referrals past their expiry date.
func (s *Service) ExpireDue(ctx context.Context) (int64, error) {
	n, err := s.referrals.ExpireDue(ctx)
	if err != nil {
		return 0, web.Internal(err)
	}
	return n, nil
}
