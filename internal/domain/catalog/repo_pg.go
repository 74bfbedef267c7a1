package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/munihealth/portal/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const itemCols = `id, name, unit_price, active, created_at, updated_at`

func scanItem(row pgx.Row) (*ServiceItem, error) {
	var it ServiceItem
	err := row.Scan(&it.ID, &it.Name, &it.UnitPrice, &it.Active, &it.CreatedAt, &it.UpdatedAt)
	return &it, err
}

func (r *repoPG) Create(ctx context.Context, item *ServiceItem) error {
	item.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO service_items (id, name, unit_price, active)
		VALUES ($1, $2, $3, $4)`,
		item.ID, item.Name, item.UnitPrice, item.Active)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*ServiceItem, error) {
	return scanItem(r.conn(ctx).QueryRow(ctx, `SELECT `+itemCols+` FROM service_items WHERE id = $1`, id))
}

func (r *repoPG) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*ServiceItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+itemCols+` FROM service_items WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make(map[uuid.UUID]*ServiceItem, len(ids))
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items[it.ID] = it
	}
	return items, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, item *ServiceItem) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE service_items SET name = $2, unit_price = $3, active = $4, updated_at = NOW()
		WHERE id = $1`,
		item.ID, item.Name, item.UnitPrice, item.Active)
	return err
}

func (r *repoPG) List(ctx context.Context, activeOnly bool, name string, limit, offset int) ([]*ServiceItem, int, error) {
	where := `WHERE ($1 = false OR active) AND ($2 = '' OR name ILIKE '%' || $2 || '%')`

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM service_items `+where, activeOnly, name).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+itemCols+` FROM service_items `+where+` ORDER BY name LIMIT $3 OFFSET $4`,
		activeOnly, name, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*ServiceItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}
