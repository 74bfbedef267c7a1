package catalog

import (
	"time"

	"github.com/google/uuid"
)

// ServiceItem maps to the service_items table. Reference data consumed by
// billing; prices are snapshotted onto invoice lines at creation, so editing
// an item never rewrites history.
type ServiceItem struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	UnitPrice float64   `db:"unit_price" json:"unit_price"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
