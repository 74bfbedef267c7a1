package auth

import (
	"time"

	"github.com/google/uuid"
)

// Employee is a health office staff account. Role gates route access:
// admin passes every employee check, the others are checked per route.
type Employee struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FullName     string    `json:"full_name" db:"full_name"`
	Role         string    `json:"role" db:"role"`
	Active       bool      `json:"active" db:"active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Patient is a portal account for a registered patient.
type Patient struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	FullName     string     `json:"full_name" db:"full_name"`
	BirthDate    *time.Time `json:"birth_date,omitempty" db:"birth_date"`
	Phone        string     `json:"phone,omitempty" db:"phone"`
	Active       bool       `json:"active" db:"active"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Employee roles known to the portal.
const (
	RoleAdmin   = "admin"
	RoleDoctor  = "doctor"
	RoleCashier = "cashier"
	RoleRecords = "records"
)

// LoginAttempt is one failed login, keyed by a SHA-256 of the client IP so
// raw addresses never land in the table.
type LoginAttempt struct {
	ID        uuid.UUID `db:"id"`
	IPHash    string    `db:"ip_hash"`
	CreatedAt time.Time `db:"created_at"`
}
