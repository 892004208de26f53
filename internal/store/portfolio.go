package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/brightwork/internal/model"
)

type PortfolioStore struct {
	db *sql.DB
}

func NewPortfolioStore(db *sql.DB) *PortfolioStore {
	return &PortfolioStore{db: db}
}

type PortfolioInput struct {
	Slug        string
	Title       string
	Summary     string
	Description string
	ImageURL    string
	ProjectURL  string
	Tags        string
	Featured    bool
	Published   bool
	SortOrder   int
}

func scanPortfolio(sc scanner) (*model.PortfolioProject, error) {
	var p model.PortfolioProject
	var featured, published int
	err := sc.Scan(
		&p.ID, &p.Slug, &p.Title, &p.Summary, &p.Description, &p.ImageURL, &p.ProjectURL,
		&p.Tags, &featured, &published, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Featured = featured != 0
	p.Published = published != 0
	return &p, nil
}

const portfolioCols = `id, slug, title, summary, description, image_url, project_url, tags, featured, published, sort_order, created_at, updated_at`

func (s *PortfolioStore) Create(ctx context.Context, in PortfolioInput) (*model.PortfolioProject, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO portfolio_projects (slug, title, summary, description, image_url, project_url, tags, featured, published, sort_order)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Slug, in.Title, in.Summary, in.Description, in.ImageURL, in.ProjectURL, in.Tags,
		boolInt(in.Featured), boolInt(in.Published), in.SortOrder,
	)
	if err != nil {
		return nil, fmt.Errorf("insert portfolio project: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *PortfolioStore) GetByID(ctx context.Context, id int64) (*model.PortfolioProject, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+portfolioCols+` FROM portfolio_projects WHERE id = ?`, id)
	p, err := scanPortfolio(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get portfolio project: %w", err)
	}
	return p, nil
}

func (s *PortfolioStore) GetBySlug(ctx context.Context, slug string) (*model.PortfolioProject, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+portfolioCols+` FROM portfolio_projects WHERE slug = ?`, slug)
	p, err := scanPortfolio(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get portfolio project by slug: %w", err)
	}
	return p, nil
}

// List orders featured items first, then by sort_order.
func (s *PortfolioStore) List(ctx context.Context, publishedOnly bool) ([]model.PortfolioProject, error) {
	query := `SELECT ` + portfolioCols + ` FROM portfolio_projects`
	if publishedOnly {
		query += ` WHERE published = 1`
	}
	query += ` ORDER BY featured DESC, sort_order, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list portfolio projects: %w", err)
	}
	defer rows.Close()

	var items []model.PortfolioProject
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("scan portfolio project: %w", err)
		}
		items = append(items, *p)
	}
	return items, rows.Err()
}

func (s *PortfolioStore) Update(ctx context.Context, id int64, in PortfolioInput) (*model.PortfolioProject, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE portfolio_projects SET slug = ?, title = ?, summary = ?, description = ?, image_url = ?, project_url = ?,
		 tags = ?, featured = ?, published = ?, sort_order = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		in.Slug, in.Title, in.Summary, in.Description, in.ImageURL, in.ProjectURL, in.Tags,
		boolInt(in.Featured), boolInt(in.Published), in.SortOrder, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update portfolio project: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *PortfolioStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM portfolio_projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete portfolio project: %w", err)
	}
	return nil
}
