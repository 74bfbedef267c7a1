package activity

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/munihealth/portal/internal/platform/session"
	"github.com/munihealth/portal/internal/platform/web"
)

// Recorder is the write side of the activity log. Domain handlers depend on
// this rather than the full service.
type Recorder interface {
	Record(ctx context.Context, action, detail string, entityID *uuid.UUID, ip string)
}

type Service struct {
	entries Repository
}

func NewService(entries Repository) *Service {
	return &Service{entries: entries}
}

// Record writes one activity entry, attributing it to the session in ctx.
// A failed write is logged and swallowed: the log must never fail the
// operation it describes.
func (s *Service) Record(ctx context.Context, action, detail string, entityID *uuid.UUID, ip string) {
	e := &Entry{
		Action:    action,
		Detail:    detail,
		EntityID:  entityID,
		IPAddress: ip,
	}
	if sess := session.FromContext(ctx); sess != nil {
		e.ActorRole = string(sess.Role)
		if sess.Role == session.RoleEmployee && sess.EmployeeRole != "" {
			e.ActorRole = sess.EmployeeRole
		}
		e.ActorID = sess.IdentityID
	}
	if err := s.entries.Add(ctx, e); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("action", action).Msg("activity log write failed")
	}
}

func (s *Service) Search(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error) {
	entries, total, err := s.entries.Search(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, web.Internal(err)
	}
	return entries, total, nil
}
