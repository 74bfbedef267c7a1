package record

import (
	"context"

	"github.com/google/uuid"
)

// Repository covers the clinical tables the aggregator reads directly.
// A limit of 0 means no cap.
type Repository interface {
	CreateVisit(ctx context.Context, v *Visit) error
	GetVisit(ctx context.Context, id uuid.UUID) (*Visit, error)
	ListVisits(ctx context.Context, patientID uuid.UUID, limit int) ([]*Visit, error)

	CreatePrescription(ctx context.Context, p *Prescription) error
	ListPrescriptions(ctx context.Context, patientID uuid.UUID, limit int) ([]*Prescription, error)

	CreateLabOrder(ctx context.Context, o *LabOrder) error
	UpdateLabOrder(ctx context.Context, o *LabOrder) error
	GetLabOrder(ctx context.Context, id uuid.UUID) (*LabOrder, error)
	ListLabOrders(ctx context.Context, patientID uuid.UUID, limit int) ([]*LabOrder, error)
}
