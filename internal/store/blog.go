package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/brightwork/internal/model"
)

type BlogStore struct {
	db *sql.DB
}

func NewBlogStore(db *sql.DB) *BlogStore {
	return &BlogStore{db: db}
}

type BlogInput struct {
	Slug      string
	Title     string
	Excerpt   string
	Body      string
	CoverURL  string
	Published bool
}

func scanBlogPost(sc scanner) (*model.BlogPost, error) {
	var p model.BlogPost
	var published int
	var publishedAt sql.NullTime
	err := sc.Scan(
		&p.ID, &p.Slug, &p.Title, &p.Excerpt, &p.Body, &p.CoverURL,
		&published, &publishedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Published = published != 0
	p.PublishedAt = timePtr(publishedAt)
	return &p, nil
}

const blogCols = `id, slug, title, excerpt, body, cover_url, published, published_at, created_at, updated_at`

// Create stamps published_at when the post is created published.
func (s *BlogStore) Create(ctx context.Context, in BlogInput, now time.Time) (*model.BlogPost, error) {
	var publishedAt *time.Time
	if in.Published {
		publishedAt = &now
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO blog_posts (slug, title, excerpt, body, cover_url, published, published_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.Slug, in.Title, in.Excerpt, in.Body, in.CoverURL, boolInt(in.Published), nullTime(publishedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert blog post: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *BlogStore) GetByID(ctx context.Context, id int64) (*model.BlogPost, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+blogCols+` FROM blog_posts WHERE id = ?`, id)
	p, err := scanBlogPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get blog post: %w", err)
	}
	return p, nil
}

func (s *BlogStore) GetBySlug(ctx context.Context, slug string) (*model.BlogPost, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+blogCols+` FROM blog_posts WHERE slug = ?`, slug)
	p, err := scanBlogPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get blog post by slug: %w", err)
	}
	return p, nil
}

// List returns posts newest first by publish date, drafts last.
func (s *BlogStore) List(ctx context.Context, publishedOnly bool) ([]model.BlogPost, error) {
	query := `SELECT ` + blogCols + ` FROM blog_posts`
	if publishedOnly {
		query += ` WHERE published = 1`
	}
	query += ` ORDER BY published_at IS NULL, published_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list blog posts: %w", err)
	}
	defer rows.Close()

	var posts []model.BlogPost
	for rows.Next() {
		p, err := scanBlogPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan blog post: %w", err)
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

// Update keeps the first publish date when a published post is edited and
// clears it when the post is unpublished.
func (s *BlogStore) Update(ctx context.Context, id int64, in BlogInput, now time.Time) (*model.BlogPost, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil || existing == nil {
		return existing, err
	}

	publishedAt := existing.PublishedAt
	switch {
	case in.Published && publishedAt == nil:
		publishedAt = &now
	case !in.Published:
		publishedAt = nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE blog_posts SET slug = ?, title = ?, excerpt = ?, body = ?, cover_url = ?, published = ?, published_at = ?,
		 updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		in.Slug, in.Title, in.Excerpt, in.Body, in.CoverURL, boolInt(in.Published), nullTime(publishedAt), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update blog post: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *BlogStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM blog_posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete blog post: %w", err)
	}
	return nil
}
