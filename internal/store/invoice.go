package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/brightwork/internal/model"
)

type InvoiceStore struct {
	db *sql.DB
}

func NewInvoiceStore(db *sql.DB) *InvoiceStore {
	return &InvoiceStore{db: db}
}

type InvoiceInput struct {
	ProjectID int64
	Number    string
	Amount    int64
	Status    model.InvoiceStatus
	DueDate   *time.Time
}

func scanInvoice(sc scanner) (*model.Invoice, error) {
	var inv model.Invoice
	var due, paid sql.NullTime
	err := sc.Scan(
		&inv.ID, &inv.ProjectID, &inv.Number, &inv.Amount, &inv.Status,
		&due, &paid, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.DueDate = timePtr(due)
	inv.PaidAt = timePtr(paid)
	return &inv, nil
}

const invoiceCols = `id, project_id, number, amount, status, due_date, paid_at, created_at, updated_at`

func (s *InvoiceStore) Create(ctx context.Context, in InvoiceInput) (*model.Invoice, error) {
	if in.Status == "" {
		in.Status = model.InvoiceStatusDraft
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO invoices (project_id, number, amount, status, due_date) VALUES (?, ?, ?, ?, ?)`,
		in.ProjectID, in.Number, in.Amount, in.Status, nullTime(in.DueDate),
	)
	if err != nil {
		return nil, fmt.Errorf("insert invoice: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *InvoiceStore) GetByID(ctx context.Context, id int64) (*model.Invoice, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+invoiceCols+` FROM invoices WHERE id = ?`, id)
	inv, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

func (s *InvoiceStore) ListByProject(ctx context.Context, projectID int64) ([]model.Invoice, error) {
	return s.query(ctx, `SELECT `+invoiceCols+` FROM invoices WHERE project_id = ? ORDER BY created_at DESC, id DESC`, projectID)
}

// ListByClient returns every invoice on the client's projects.
func (s *InvoiceStore) ListByClient(ctx context.Context, clientID int64) ([]model.Invoice, error) {
	return s.query(ctx,
		`SELECT i.id, i.project_id, i.number, i.amount, i.status, i.due_date, i.paid_at, i.created_at, i.updated_at
		 FROM invoices i JOIN projects p ON p.id = i.project_id
		 WHERE p.client_id = ? ORDER BY i.created_at DESC, i.id DESC`, clientID)
}

func (s *InvoiceStore) query(ctx context.Context, query string, args ...any) ([]model.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

// Update rewrites the invoice. Moving to paid stamps paid_at; leaving paid
// clears it.
func (s *InvoiceStore) Update(ctx context.Context, id int64, in InvoiceInput, now time.Time) (*model.Invoice, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil || existing == nil {
		return existing, err
	}
	if in.Status == "" {
		in.Status = existing.Status
	}

	paidAt := existing.PaidAt
	switch {
	case in.Status == model.InvoiceStatusPaid && paidAt == nil:
		paidAt = &now
	case in.Status != model.InvoiceStatusPaid:
		paidAt = nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE invoices SET number = ?, amount = ?, status = ?, due_date = ?, paid_at = ?,
		 updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		in.Number, in.Amount, in.Status, nullTime(in.DueDate), nullTime(paidAt), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *InvoiceStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	return nil
}
