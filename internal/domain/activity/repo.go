package activity

import "context"

type Repository interface {
	Add(ctx context.Context, e *Entry) error
	Search(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error)
}
