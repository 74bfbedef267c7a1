package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/munihealth/portal/internal/platform/web"
)

// -- Mock Repository --

type mockCatalogRepo struct {
	items map[uuid.UUID]*ServiceItem
}

func newMockCatalogRepo() *mockCatalogRepo {
	return &mockCatalogRepo{items: make(map[uuid.UUID]*ServiceItem)}
}

func (m *mockCatalogRepo) Create(_ context.Context, item *ServiceItem) error {
	item.ID = uuid.New()
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *mockCatalogRepo) GetByID(_ context.Context, id uuid.UUID) (*ServiceItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *item
	return &cp, nil
}

func (m *mockCatalogRepo) GetByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*ServiceItem, error) {
	out := make(map[uuid.UUID]*ServiceItem)
	for _, id := range ids {
		if item, ok := m.items[id]; ok {
			cp := *item
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *mockCatalogRepo) Update(_ context.Context, item *ServiceItem) error {
	if _, ok := m.items[item.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *mockCatalogRepo) List(_ context.Context, activeOnly bool, name string, limit, offset int) ([]*ServiceItem, int, error) {
	var out []*ServiceItem
	for _, item := range m.items {
		if activeOnly && !item.Active {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(item.Name), strings.ToLower(name)) {
			continue
		}
		cp := *item
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func catalogKind(t *testing.T, err error) string {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	var werr *web.Error
	if !errors.As(err, &werr) {
		t.Fatalf("not a web error: %v", err)
	}
	return string(werr.Kind)
}

func TestCreate_SetsActive(t *testing.T) {
	repo := newMockCatalogRepo()
	svc := NewService(repo)

	item := &ServiceItem{Name: "Consultation", UnitPrice: 150}
	if err := svc.Create(context.Background(), item); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !item.Active {
		t.Error("new items should be active")
	}
	if _, ok := repo.items[item.ID]; !ok {
		t.Error("item not persisted")
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(newMockCatalogRepo())

	cases := []*ServiceItem{
		{Name: "", UnitPrice: 100},
		{Name: "X-Ray", UnitPrice: 0},
		{Name: "X-Ray", UnitPrice: -10},
	}
	for _, item := range cases {
		if got := catalogKind(t, svc.Create(context.Background(), item)); got != "validation_error" {
			t.Errorf("item %+v: expected validation_error, got %s", item, got)
		}
	}
}

func TestUpdate_UnknownItem(t *testing.T) {
	svc := NewService(newMockCatalogRepo())

	err := svc.Update(context.Background(), &ServiceItem{ID: uuid.New(), Name: "X-Ray", UnitPrice: 300})
	if got := catalogKind(t, err); got != "not_found" {
		t.Errorf("expected not_found, got %s", got)
	}
}

func TestDeactivate(t *testing.T) {
	repo := newMockCatalogRepo()
	svc := NewService(repo)

	item := &ServiceItem{Name: "Urinalysis", UnitPrice: 80}
	if err := svc.Create(context.Background(), item); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Deactivate(context.Background(), item.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if repo.items[item.ID].Active {
		t.Error("item still active")
	}

	if got := catalogKind(t, svc.Deactivate(context.Background(), uuid.New())); got != "not_found" {
		t.Errorf("expected not_found, got %s", got)
	}
}

func TestList_ActiveOnly(t *testing.T) {
	repo := newMockCatalogRepo()
	svc := NewService(repo)

	a := &ServiceItem{Name: "Consultation", UnitPrice: 150}
	b := &ServiceItem{Name: "Old Procedure", UnitPrice: 99}
	for _, item := range []*ServiceItem{a, b} {
		if err := svc.Create(context.Background(), item); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if err := svc.Deactivate(context.Background(), b.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	items, total, err := svc.List(context.Background(), true, "", 50, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].Name != "Consultation" {
		t.Errorf("unexpected list result: total=%d items=%v", total, items)
	}
}
