package activity

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

func (r *repoPG) Add(ctx context.Context, e *Entry) error {
	e.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO activity_log (id, actor_role, actor_id, action, detail, entity_id, ip_address)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.ActorRole, e.ActorID, e.Action, e.Detail, e.EntityID, e.IPAddress)
	return err
}

func (r *repoPG) Search(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error) {
	where := `WHERE ($1 = '' OR actor_role = $1)
		AND ($2::uuid IS NULL OR actor_id = $2)
		AND ($3 = '' OR action = $3)
		AND ($4::timestamptz IS NULL OR created_at >= $4)
		AND ($5::timestamptz IS NULL OR created_at < $5)`
	args := []interface{}{f.ActorRole, f.ActorID, f.Action, f.From, f.To}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM activity_log `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, actor_role, actor_id, action, detail, entity_id, ip_address, created_at
		FROM activity_log `+where+` ORDER BY created_at DESC LIMIT $6 OFFSET $7`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorRole, &e.ActorID, &e.Action, &e.Detail,
			&e.EntityID, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, &e)
	}
	return entries, total, rows.Err()
}
