package referral

import (
	"time"

	"github.com/google/uuid"
)

// Status of a referral.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusCompleted Status = "completed"
)

var validStatuses = map[Status]bool{
	StatusActive: true, StatusCancelled: true, StatusExpired: true, StatusCompleted: true,
}

// Reinstatable reports whether a referral in this status may go back to
// active. Completed referrals stay completed.
func (s Status) Reinstatable() bool {
	return s == StatusCancelled || s == StatusExpired
}

// Referral maps to the referrals table: a patient sent to an outside
// facility for care the health office cannot provide.
type Referral struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	ReferredBy   uuid.UUID  `db:"referred_by" json:"referred_by"`
	FacilityName string     `db:"facility_name" json:"facility_name"`
	Reason       string     `db:"reason" json:"reason"`
	Status       Status     `db:"status" json:"status"`
	ExpiresAt    *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}
