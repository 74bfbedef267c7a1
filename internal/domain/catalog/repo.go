package catalog

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, item *ServiceItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*ServiceItem, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*ServiceItem, error)
	Update(ctx context.Context, item *ServiceItem) error
	List(ctx context.Context, activeOnly bool, name string, limit, offset int) ([]*ServiceItem, int, error)
}
