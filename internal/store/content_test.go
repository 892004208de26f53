package store

import (
	"context"
	"testing"
	"time"
)

func TestBlogPublishStamps(t *testing.T) {
	bs := NewBlogStore(setupTestDB(t))
	ctx := context.Background()
	now := time.Now()

	draft, err := bs.Create(ctx, BlogInput{Slug: "hello", Title: "Hello", Body: "# Hi"}, now)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if draft.PublishedAt != nil {
		t.Error("draft should have no published_at")
	}

	pub, err := bs.Update(ctx, draft.ID, BlogInput{Slug: "hello", Title: "Hello", Body: "# Hi", Published: true}, now)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if pub.PublishedAt == nil {
		t.Fatal("published post should have published_at")
	}
	first := *pub.PublishedAt

	edited, err := bs.Update(ctx, draft.ID, BlogInput{Slug: "hello", Title: "Hello again", Published: true}, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.PublishedAt == nil || !edited.PublishedAt.Equal(first) {
		t.Errorf("published_at = %v, want unchanged %v", edited.PublishedAt, first)
	}

	list, _ := bs.List(ctx, true)
	if len(list) != 1 {
		t.Errorf("published list = %d, want 1", len(list))
	}
}

func TestPortfolioPublishedOnly(t *testing.T) {
	ps := NewPortfolioStore(setupTestDB(t))
	ctx := context.Background()

	if _, err := ps.Create(ctx, PortfolioInput{Slug: "bakery", Title: "Bakery", Published: true}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := ps.Create(ctx, PortfolioInput{Slug: "draft", Title: "Draft"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := ps.Create(ctx, PortfolioInput{Slug: "bakery", Title: "Dup"}); err == nil {
		t.Error("expected unique slug error")
	}

	pub, _ := ps.List(ctx, true)
	if len(pub) != 1 || pub[0].Slug != "bakery" {
		t.Errorf("published = %+v, want bakery only", pub)
	}
	all, _ := ps.List(ctx, false)
	if len(all) != 2 {
		t.Errorf("all = %d, want 2", len(all))
	}

	got, err := ps.GetBySlug(ctx, "missing")
	if err != nil || got != nil {
		t.Errorf("GetBySlug(missing) = %v, %v; want nil, nil", got, err)
	}
}

func TestPushSubscribeUpsert(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)
	ps := NewPushStore(db)
	ctx := context.Background()

	u, err := us.Create(ctx, "admin@example.com", "Admin")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	first, err := ps.Subscribe(ctx, u.ID, "https://push.example/1", "p1", "a1", "laptop")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	second, err := ps.Subscribe(ctx, u.ID, "https://push.example/1", "p2", "a2", "laptop")
	if err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("id = %d, want %d", second.ID, first.ID)
	}
	if second.P256dhKey != "p2" {
		t.Errorf("p256dh = %q, want p2", second.P256dhKey)
	}

	if err := ps.DeleteByEndpoint(ctx, "https://push.example/1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	all, _ := ps.ListAll(ctx)
	if len(all) != 0 {
		t.Errorf("subscriptions = %d, want 0", len(all))
	}
}

func TestBackupLifecycle(t *testing.T) {
	bs := NewBackupStore(setupTestDB(t))
	ctx := context.Background()
	start := time.Now().Add(-48 * time.Hour)

	b, err := bs.Create(ctx, "brightwork-1.db.enc", "backups/brightwork-1.db.enc", start)
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}
	if b.Available() {
		t.Error("pending backup should not be available")
	}
	if err := bs.UpdateCompleted(ctx, b.ID, 4096, time.Now()); err != nil {
		t.Fatalf("update completed: %v", err)
	}

	latest, err := bs.LatestCompleted(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil || latest.SizeBytes != 4096 {
		t.Fatalf("latest = %+v, want size 4096", latest)
	}
	if !latest.Available() {
		t.Error("completed backup should be available")
	}

	keys, err := bs.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("delete older: %v", err)
	}
	if len(keys) != 1 || keys[0] != "backups/brightwork-1.db.enc" {
		t.Errorf("keys = %v, want the one backup key", keys)
	}
}
