package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository covers the two account tables plus the failed-login counter.
type Repository interface {
	GetEmployeeByUsername(ctx context.Context, username string) (*Employee, error)
	GetEmployeeByID(ctx context.Context, id uuid.UUID) (*Employee, error)
	UpdateEmployeePassword(ctx context.Context, id uuid.UUID, hash string) error

	GetPatientByEmail(ctx context.Context, email string) (*Patient, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	UpdatePatientPassword(ctx context.Context, id uuid.UUID, hash string) error

	CountRecentFailures(ctx context.Context, ipHash string, since time.Time) (int, error)
	RecordFailure(ctx context.Context, ipHash string) error
	ClearFailures(ctx context.Context, ipHash string) error
}
