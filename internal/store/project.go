package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/brightwork/internal/model"
)

type ProjectStore struct {
	db *sql.DB
}

func NewProjectStore(db *sql.DB) *ProjectStore {
	return &ProjectStore{db: db}
}

type ProjectInput struct {
	ClientID    int64
	Name        string
	Description string
	Status      model.ProjectStatus
	StartDate   *time.Time
	DueDate     *time.Time
	Budget      int64
}

func scanProject(sc scanner) (*model.Project, error) {
	var p model.Project
	var start, due sql.NullTime
	err := sc.Scan(
		&p.ID, &p.ClientID, &p.Name, &p.Description, &p.Status,
		&start, &due, &p.Budget, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.StartDate = timePtr(start)
	p.DueDate = timePtr(due)
	return &p, nil
}

const projectCols = `id, client_id, name, description, status, start_date, due_date, budget, created_at, updated_at`

func (s *ProjectStore) Create(ctx context.Context, in ProjectInput) (*model.Project, error) {
	if in.Status == "" {
		in.Status = model.ProjectStatusPlanning
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (client_id, name, description, status, start_date, due_date, budget) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.ClientID, in.Name, in.Description, in.Status, nullTime(in.StartDate), nullTime(in.DueDate), in.Budget,
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ProjectStore) GetByID(ctx context.Context, id int64) (*model.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *ProjectStore) List(ctx context.Context) ([]model.Project, error) {
	return s.query(ctx, `SELECT `+projectCols+` FROM projects ORDER BY created_at DESC, id DESC`)
}

func (s *ProjectStore) ListByClient(ctx context.Context, clientID int64) ([]model.Project, error) {
	return s.query(ctx, `SELECT `+projectCols+` FROM projects WHERE client_id = ? ORDER BY created_at DESC, id DESC`, clientID)
}

func (s *ProjectStore) query(ctx context.Context, query string, args ...any) ([]model.Project, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

func (s *ProjectStore) Update(ctx context.Context, id int64, in ProjectInput) (*model.Project, error) {
	if in.Status == "" {
		in.Status = model.ProjectStatusPlanning
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE projects SET client_id = ?, name = ?, description = ?, status = ?, start_date = ?, due_date = ?, budget = ?,
		 updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		in.ClientID, in.Name, in.Description, in.Status, nullTime(in.StartDate), nullTime(in.DueDate), in.Budget, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Delete cascades to the project's updates and invoices.
func (s *ProjectStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}
