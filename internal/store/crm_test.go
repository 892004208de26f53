package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/brightwork/internal/model"
)

func TestClientCreateDefaults(t *testing.T) {
	cs := NewClientStore(setupTestDB(t))
	ctx := context.Background()

	c, err := cs.Create(ctx, ClientInput{Email: "carol@example.com", Name: "Carol"})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	if c.Status != model.ClientStatusLead {
		t.Errorf("status = %q, want %q", c.Status, model.ClientStatusLead)
	}
	if c.PortalAccess {
		t.Error("portal access should default to false")
	}

	got, err := cs.GetByEmail(ctx, "Carol@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got != nil {
		t.Error("email lookup should be exact match")
	}
}

func TestClientDeleteWithProjectsFails(t *testing.T) {
	db := setupTestDB(t)
	cs := NewClientStore(db)
	ps := NewProjectStore(db)
	ctx := context.Background()

	c, _ := cs.Create(ctx, ClientInput{Email: "carol@example.com", Name: "Carol"})
	if _, err := ps.Create(ctx, ProjectInput{ClientID: c.ID, Name: "Site rebuild"}); err != nil {
		t.Fatalf("create project: %v", err)
	}

	err := cs.Delete(ctx, c.ID)
	if err == nil {
		t.Fatal("expected foreign key error deleting client with projects")
	}
	if !IsForeignKeyViolation(err) {
		t.Errorf("IsForeignKeyViolation(%v) = false, want true", err)
	}
}

func TestClientDuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	cs := NewClientStore(db)
	ctx := context.Background()

	if _, err := cs.Create(ctx, ClientInput{Email: "dana@example.com", Name: "Dana"}); err != nil {
		t.Fatalf("create client: %v", err)
	}
	_, err := cs.Create(ctx, ClientInput{Email: "dana@example.com", Name: "Dana again"})
	if !IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = false, want true", err)
	}
	if IsUniqueViolation(nil) {
		t.Error("IsUniqueViolation(nil) = true")
	}
}

func TestInvoiceListByClientAndPaid(t *testing.T) {
	db := setupTestDB(t)
	cs := NewClientStore(db)
	ps := NewProjectStore(db)
	is := NewInvoiceStore(db)
	ctx := context.Background()

	c, _ := cs.Create(ctx, ClientInput{Email: "carol@example.com", Name: "Carol"})
	other, _ := cs.Create(ctx, ClientInput{Email: "dave@example.com", Name: "Dave"})
	p, _ := ps.Create(ctx, ProjectInput{ClientID: c.ID, Name: "Site"})
	op, _ := ps.Create(ctx, ProjectInput{ClientID: other.ID, Name: "Other"})

	inv, err := is.Create(ctx, InvoiceInput{ProjectID: p.ID, Number: "INV-001", Amount: 50000})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if inv.Status != model.InvoiceStatusDraft {
		t.Errorf("status = %q, want draft", inv.Status)
	}
	if _, err := is.Create(ctx, InvoiceInput{ProjectID: op.ID, Number: "INV-002", Amount: 100}); err != nil {
		t.Fatalf("create other invoice: %v", err)
	}

	list, err := is.ListByClient(ctx, c.ID)
	if err != nil {
		t.Fatalf("list by client: %v", err)
	}
	if len(list) != 1 || list[0].Number != "INV-001" {
		t.Errorf("list by client = %+v, want only INV-001", list)
	}

	paid, err := is.Update(ctx, inv.ID, InvoiceInput{Number: "INV-001", Amount: 50000, Status: model.InvoiceStatusPaid}, time.Now())
	if err != nil {
		t.Fatalf("update invoice: %v", err)
	}
	if paid.PaidAt == nil {
		t.Error("paid_at should be set when invoice is paid")
	}

	voided, err := is.Update(ctx, inv.ID, InvoiceInput{Number: "INV-001", Amount: 50000, Status: model.InvoiceStatusVoid}, time.Now())
	if err != nil {
		t.Fatalf("void invoice: %v", err)
	}
	if voided.PaidAt != nil {
		t.Error("paid_at should clear when invoice leaves paid")
	}
}

func TestProjectUpdatesClientView(t *testing.T) {
	db := setupTestDB(t)
	cs := NewClientStore(db)
	ps := NewProjectStore(db)
	us := NewProjectUpdateStore(db)
	ctx := context.Background()

	c, _ := cs.Create(ctx, ClientInput{Email: "carol@example.com"})
	p, _ := ps.Create(ctx, ProjectInput{ClientID: c.ID, Name: "Site"})
	if _, err := us.Create(ctx, p.ID, "Kickoff", "We started", true); err != nil {
		t.Fatalf("create update: %v", err)
	}
	if _, err := us.Create(ctx, p.ID, "Internal", "Margins look thin", false); err != nil {
		t.Fatalf("create update: %v", err)
	}

	all, _ := us.ListByProject(ctx, p.ID, false)
	if len(all) != 2 {
		t.Errorf("admin view = %d updates, want 2", len(all))
	}
	visible, _ := us.ListByProject(ctx, p.ID, true)
	if len(visible) != 1 || visible[0].Title != "Kickoff" {
		t.Errorf("client view = %+v, want only Kickoff", visible)
	}

	if err := ps.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	all, _ = us.ListByProject(ctx, p.ID, false)
	if len(all) != 0 {
		t.Errorf("updates after project delete = %d, want 0", len(all))
	}
}

func TestContactListAndConvert(t *testing.T) {
	db := setupTestDB(t)
	cs := NewContactStore(db)
	clients := NewClientStore(db)
	ctx := context.Background()

	sub, err := cs.Create(ctx, ContactInput{Name: "Erin", Email: "erin@example.com", Message: "Need a new site"})
	if err != nil {
		t.Fatalf("create contact: %v", err)
	}
	if _, err := cs.Create(ctx, ContactInput{Name: "Frank", Email: "frank@example.com", Message: "Hello"}); err != nil {
		t.Fatalf("create contact: %v", err)
	}

	c, _ := clients.Create(ctx, ClientInput{Email: sub.Email, Name: sub.Name})
	if err := cs.SetConverted(ctx, sub.ID, c.ID); err != nil {
		t.Fatalf("set converted: %v", err)
	}

	read := true
	readList, err := cs.List(ctx, ContactFilter{Read: &read})
	if err != nil {
		t.Fatalf("list read: %v", err)
	}
	if len(readList) != 1 || readList[0].ConvertedClientID == nil || *readList[0].ConvertedClientID != c.ID {
		t.Errorf("read list = %+v, want converted Erin", readList)
	}

	unread := false
	unreadList, _ := cs.List(ctx, ContactFilter{Read: &unread})
	if len(unreadList) != 1 || unreadList[0].Name != "Frank" {
		t.Errorf("unread list = %+v, want Frank", unreadList)
	}

	search, _ := cs.List(ctx, ContactFilter{Search: "new site"})
	if len(search) != 1 {
		t.Errorf("search = %d results, want 1", len(search))
	}
}
