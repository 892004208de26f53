package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/brightwork/internal/model"
)

type ClientStore struct {
	db *sql.DB
}

func NewClientStore(db *sql.DB) *ClientStore {
	return &ClientStore{db: db}
}

// ClientInput carries the mutable client fields for create and update.
type ClientInput struct {
	Email        string
	Name         string
	Company      string
	Phone        string
	Status       model.ClientStatus
	PortalAccess bool
	Notes        string
}

func scanClient(sc scanner) (*model.Client, error) {
	var c model.Client
	var portal int
	err := sc.Scan(
		&c.ID, &c.Email, &c.Name, &c.Company, &c.Phone, &c.Status,
		&portal, &c.Notes, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.PortalAccess = portal != 0
	return &c, nil
}

const clientCols = `id, email, name, company, phone, status, portal_access, notes, created_at, updated_at`

func (s *ClientStore) Create(ctx context.Context, in ClientInput) (*model.Client, error) {
	if in.Status == "" {
		in.Status = model.ClientStatusLead
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO clients (email, name, company, phone, status, portal_access, notes) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.Email, in.Name, in.Company, in.Phone, in.Status, boolInt(in.PortalAccess), in.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert client: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ClientStore) GetByID(ctx context.Context, id int64) (*model.Client, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clientCols+` FROM clients WHERE id = ?`, id)
	c, err := scanClient(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

// GetByEmail is an exact, case-sensitive match.
func (s *ClientStore) GetByEmail(ctx context.Context, email string) (*model.Client, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clientCols+` FROM clients WHERE email = ?`, email)
	c, err := scanClient(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get client by email: %w", err)
	}
	return c, nil
}

func (s *ClientStore) List(ctx context.Context) ([]model.Client, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+clientCols+` FROM clients ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, *c)
	}
	return clients, rows.Err()
}

func (s *ClientStore) Update(ctx context.Context, id int64, in ClientInput) (*model.Client, error) {
	if in.Status == "" {
		in.Status = model.ClientStatusLead
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE clients SET email = ?, name = ?, company = ?, phone = ?, status = ?, portal_access = ?, notes = ?,
		 updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		in.Email, in.Name, in.Company, in.Phone, in.Status, boolInt(in.PortalAccess), in.Notes, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Delete fails if the client still owns projects.
func (s *ClientStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	return nil
}
