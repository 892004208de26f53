package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/brightwork/internal/model"
)

type ProjectUpdateStore struct {
	db *sql.DB
}

func NewProjectUpdateStore(db *sql.DB) *ProjectUpdateStore {
	return &ProjectUpdateStore{db: db}
}

func scanProjectUpdate(sc scanner) (*model.ProjectUpdate, error) {
	var u model.ProjectUpdate
	var visible int
	err := sc.Scan(&u.ID, &u.ProjectID, &u.Title, &u.Body, &visible, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.VisibleToClient = visible != 0
	return &u, nil
}

const projectUpdateCols = `id, project_id, title, body, visible_to_client, created_at`

func (s *ProjectUpdateStore) Create(ctx context.Context, projectID int64, title, body string, visibleToClient bool) (*model.ProjectUpdate, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO project_updates (project_id, title, body, visible_to_client) VALUES (?, ?, ?, ?)`,
		projectID, title, body, boolInt(visibleToClient),
	)
	if err != nil {
		return nil, fmt.Errorf("insert project update: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ProjectUpdateStore) GetByID(ctx context.Context, id int64) (*model.ProjectUpdate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectUpdateCols+` FROM project_updates WHERE id = ?`, id)
	u, err := scanProjectUpdate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project update: %w", err)
	}
	return u, nil
}

// ListByProject returns updates newest first. With clientView set, hidden
// updates are left out.
func (s *ProjectUpdateStore) ListByProject(ctx context.Context, projectID int64, clientView bool) ([]model.ProjectUpdate, error) {
	query := `SELECT ` + projectUpdateCols + ` FROM project_updates WHERE project_id = ?`
	if clientView {
		query += ` AND visible_to_client = 1`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project updates: %w", err)
	}
	defer rows.Close()

	var updates []model.ProjectUpdate
	for rows.Next() {
		u, err := scanProjectUpdate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project update: %w", err)
		}
		updates = append(updates, *u)
	}
	return updates, rows.Err()
}

func (s *ProjectUpdateStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM project_updates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project update: %w", err)
	}
	return nil
}
