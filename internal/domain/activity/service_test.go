package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/munihealth/portal/internal/platform/session"
)

// -- Mock Repository --

type mockActivityRepo struct {
	entries []*Entry
	addErr  error
}

func (m *mockActivityRepo) Add(_ context.Context, e *Entry) error {
	if m.addErr != nil {
		return m.addErr
	}
	e.ID = uuid.New()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockActivityRepo) Search(_ context.Context, f Filter, limit, offset int) ([]*Entry, int, error) {
	var out []*Entry
	for _, e := range m.entries {
		if f.ActorRole != "" && e.ActorRole != f.ActorRole {
			continue
		}
		if f.ActorID != nil && (e.ActorID == nil || *e.ActorID != *f.ActorID) {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.From != nil && e.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !e.CreatedAt.Before(*f.To) {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func sessionContext(role session.Role, employeeRole string) context.Context {
	id := uuid.New()
	return session.WithSession(context.Background(), &session.Session{
		ID:           uuid.New(),
		Role:         role,
		IdentityID:   &id,
		EmployeeRole: employeeRole,
	})
}

func TestRecord_AttributesEmployeeSession(t *testing.T) {
	repo := &mockActivityRepo{}
	svc := NewService(repo)

	ctx := sessionContext(session.RoleEmployee, "cashier")
	entityID := uuid.New()
	svc.Record(ctx, "payment.apply", "receipt OR-20260831-ABCDEF-01", &entityID, "203.0.113.9")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	e := repo.entries[0]
	if e.ActorRole != "cashier" {
		t.Errorf("expected actor_role cashier, got %s", e.ActorRole)
	}
	if e.ActorID == nil {
		t.Error("expected actor_id from session")
	}
	if e.Action != "payment.apply" || e.IPAddress != "203.0.113.9" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.EntityID == nil || *e.EntityID != entityID {
		t.Errorf("entity id not carried: %+v", e.EntityID)
	}
}

func TestRecord_PatientSession(t *testing.T) {
	repo := &mockActivityRepo{}
	svc := NewService(repo)

	svc.Record(sessionContext(session.RolePatient, ""), "record.view", "own records", nil, "198.51.100.4")

	if got := repo.entries[0].ActorRole; got != "patient" {
		t.Errorf("expected actor_role patient, got %s", got)
	}
}

func TestRecord_NoSession(t *testing.T) {
	repo := &mockActivityRepo{}
	svc := NewService(repo)

	// Pre-login actions (failed logins, reset requests) carry no session.
	svc.Record(context.Background(), "auth.login", "failed", nil, "192.0.2.1")

	e := repo.entries[0]
	if e.ActorRole != "" || e.ActorID != nil {
		t.Errorf("anonymous entry should have no actor: %+v", e)
	}
}

func TestRecord_WriteFailureSwallowed(t *testing.T) {
	repo := &mockActivityRepo{addErr: errors.New("connection reset")}
	svc := NewService(repo)

	// Must not panic or surface the error.
	svc.Record(context.Background(), "auth.login", "ok", nil, "192.0.2.1")
}

func TestSearch_Filters(t *testing.T) {
	repo := &mockActivityRepo{}
	svc := NewService(repo)

	actor := uuid.New()
	svc.Record(session.WithSession(context.Background(), &session.Session{
		Role: session.RoleEmployee, IdentityID: &actor, EmployeeRole: "doctor",
	}), "referral.create", "", nil, "192.0.2.1")
	svc.Record(sessionContext(session.RolePatient, ""), "record.view", "", nil, "192.0.2.2")

	entries, total, err := svc.Search(context.Background(), Filter{Action: "referral.create"}, 50, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 || len(entries) != 1 {
		t.Fatalf("expected 1 match, got %d", total)
	}
	if entries[0].ActorRole != "doctor" {
		t.Errorf("unexpected actor_role %s", entries[0].ActorRole)
	}

	entries, _, err = svc.Search(context.Background(), Filter{ActorID: &actor}, 50, 0)
	if err != nil {
		t.Fatalf("search by actor: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "referral.create" {
		t.Errorf("actor filter failed: %v", entries)
	}
}
