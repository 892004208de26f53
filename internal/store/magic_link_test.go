package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/brightwork/internal/model"
)

func TestMagicLinkCreate(t *testing.T) {
	ms := NewMagicLinkStore(setupTestDB(t))
	ctx := context.Background()
	expires := time.Now().Add(15 * time.Minute)

	ml, err := ms.Create(ctx, "tok-1", "alice@example.com", model.RoleClient, expires)
	if err != nil {
		t.Fatalf("create magic link: %v", err)
	}
	if ml.Token != "tok-1" {
		t.Errorf("token = %q, want %q", ml.Token, "tok-1")
	}
	if ml.Role != model.RoleClient {
		t.Errorf("role = %q, want %q", ml.Role, model.RoleClient)
	}
	if ml.Used {
		t.Error("new link should not be used")
	}
	if ml.UsedAt != nil {
		t.Errorf("used_at = %v, want nil", ml.UsedAt)
	}
	if !ml.ExpiresAt.Equal(expires.UTC().Truncate(time.Second)) {
		t.Errorf("expires_at = %v, want %v", ml.ExpiresAt, expires.UTC().Truncate(time.Second))
	}
}

func TestMagicLinkDuplicateToken(t *testing.T) {
	ms := NewMagicLinkStore(setupTestDB(t))
	ctx := context.Background()

	if _, err := ms.Create(ctx, "dup", "a@example.com", model.RoleAdmin, time.Now()); err != nil {
		t.Fatalf("create magic link: %v", err)
	}
	if _, err := ms.Create(ctx, "dup", "b@example.com", model.RoleAdmin, time.Now()); err == nil {
		t.Error("expected unique constraint error for duplicate token")
	}
}

func TestMagicLinkGetByTokenNotFound(t *testing.T) {
	ms := NewMagicLinkStore(setupTestDB(t))

	ml, err := ms.GetByToken(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if ml != nil {
		t.Errorf("expected nil, got %+v", ml)
	}
}

func TestMagicLinkMarkUsedOnce(t *testing.T) {
	ms := NewMagicLinkStore(setupTestDB(t))
	ctx := context.Background()

	ml, err := ms.Create(ctx, "tok", "alice@example.com", model.RoleAdmin, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("create magic link: %v", err)
	}

	ok, err := ms.MarkUsed(ctx, ml.ID, time.Now())
	if err != nil {
		t.Fatalf("mark used: %v", err)
	}
	if !ok {
		t.Error("first mark used = false, want true")
	}

	ok, err = ms.MarkUsed(ctx, ml.ID, time.Now())
	if err != nil {
		t.Fatalf("mark used again: %v", err)
	}
	if ok {
		t.Error("second mark used = true, want false")
	}

	got, err := ms.GetByToken(ctx, "tok")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if !got.Used {
		t.Error("link should be used")
	}
	if got.UsedAt == nil {
		t.Error("used_at should be set")
	}
}

func TestMagicLinkDeleteOlderThan(t *testing.T) {
	ms := NewMagicLinkStore(setupTestDB(t))
	ctx := context.Background()

	if _, err := ms.Create(ctx, "old", "alice@example.com", model.RoleAdmin, time.Now()); err != nil {
		t.Fatalf("create magic link: %v", err)
	}

	n, err := ms.DeleteOlderThan(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("delete older than: %v", err)
	}
	if n != 0 {
		t.Errorf("deleted = %d, want 0", n)
	}

	n, err = ms.DeleteOlderThan(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("delete older than: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}
