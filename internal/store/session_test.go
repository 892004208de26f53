package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/brightwork/internal/model"
)

func TestSessionCreateAndGet(t *testing.T) {
	ss := NewSessionStore(setupTestDB(t))
	ctx := context.Background()

	created, err := ss.Create(ctx, "sess-tok", "alice@example.com", model.RoleAdmin, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	sess, err := ss.GetByToken(ctx, "sess-tok")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess == nil {
		t.Fatal("expected session, got nil")
	}
	if sess.ID != created.ID {
		t.Errorf("id = %d, want %d", sess.ID, created.ID)
	}
	if sess.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", sess.Email, "alice@example.com")
	}
	if sess.Role != model.RoleAdmin {
		t.Errorf("role = %q, want %q", sess.Role, model.RoleAdmin)
	}
}

func TestSessionDeleteByTokenIdempotent(t *testing.T) {
	ss := NewSessionStore(setupTestDB(t))
	ctx := context.Background()

	if _, err := ss.Create(ctx, "sess-tok", "alice@example.com", model.RoleClient, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := ss.DeleteByToken(ctx, "sess-tok"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := ss.DeleteByToken(ctx, "sess-tok"); err != nil {
		t.Errorf("second delete: %v", err)
	}

	sess, err := ss.GetByToken(ctx, "sess-tok")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess != nil {
		t.Error("expected nil after delete")
	}
}

func TestSessionDeleteExpired(t *testing.T) {
	ss := NewSessionStore(setupTestDB(t))
	ctx := context.Background()
	now := time.Now()

	if _, err := ss.Create(ctx, "expired", "a@example.com", model.RoleClient, now.Add(-time.Hour)); err != nil {
		t.Fatalf("create expired session: %v", err)
	}
	if _, err := ss.Create(ctx, "live", "b@example.com", model.RoleClient, now.Add(time.Hour)); err != nil {
		t.Fatalf("create live session: %v", err)
	}

	n, err := ss.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	live, err := ss.GetByToken(ctx, "live")
	if err != nil {
		t.Fatalf("get live: %v", err)
	}
	if live == nil {
		t.Error("live session should survive cleanup")
	}
}
