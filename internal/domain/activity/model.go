package activity

import (
	"time"

	"github.com/google/uuid"
)

// Entry maps to the activity_log table. Append-only: mutating portal
// operations (logins, invoices, payments, referral transitions) each leave
// one row behind.
type Entry struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	ActorRole string     `db:"actor_role" json:"actor_role"`
	ActorID   *uuid.UUID `db:"actor_id" json:"actor_id,omitempty"`
	Action    string     `db:"action" json:"action"`
	Detail    string     `db:"detail" json:"detail"`
	EntityID  *uuid.UUID `db:"entity_id" json:"entity_id,omitempty"`
	IPAddress string     `db:"ip_address" json:"ip_address"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Filter narrows an activity-log query.
type Filter struct {
	ActorRole string
	ActorID   *uuid.UUID
	Action    string
	From      *time.Time
	To        *time.Time
}
