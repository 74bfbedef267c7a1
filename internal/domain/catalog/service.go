package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/munihealth/portal/internal/platform/web"
)

type Service struct {
	items Repository
}

func NewService(items Repository) *Service {
	return &Service{items: items}
}

func (s *Service) Create(ctx context.Context, item *ServiceItem) error {
	if item.Name == "" {
		return web.E(web.KindValidation, "service name is required")
	}
	if item.UnitPrice <= 0 {
		return web.E(web.KindValidation, "unit price must be positive")
	}
	item.Active = true
	if err := s.items.Create(ctx, item); err != nil {
		return web.Internal(err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ServiceItem, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, web.E(web.KindNotFound, "service item not found")
	}
	return item, nil
}

func (s *Service) Update(ctx context.Context, item *ServiceItem) error {
	if item.Name == "" {
		return web.E(web.KindValidation, "service name is required")
	}
	if item.UnitPrice <= 0 {
		return web.E(web.KindValidation, "unit price must be positive")
	}
	if _, err := s.items.GetByID(ctx, item.ID); err != nil {
		return web.E(web.KindNotFound, "service item not found")
	}
	if err := s.items.Update(ctx, item); err != nil {
		return web.Internal(err)
	}
	return nil
}

// Deactivate hides an item from new invoices without touching existing ones.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return web.E(web.KindNotFound, "service item not found")
	}
	item.Active = false
	if err := s.items.Update(ctx, item); err != nil {
		return web.Internal(err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, activeOnly bool, name string, limit, offset int) ([]*ServiceItem, int, error) {
	items, total, err := s.items.List(ctx, activeOnly, name, limit, offset)
	if err != nil {
		return nil, 0, web.Internal(err)
	}
	return items, total, nil
}
