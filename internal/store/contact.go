package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/dukerupert/brightwork/internal/model"
)

type ContactStore struct {
	db *sql.DB
}

func NewContactStore(db *sql.DB) *ContactStore {
	return &ContactStore{db: db}
}

type ContactInput struct {
	Name    string
	Email   string
	Company string
	Phone   string
	Message string
}

// ContactFilter narrows List. A nil Read matches read and unread.
type ContactFilter struct {
	Read   *bool
	Search string
}

func scanContact(sc scanner) (*model.ContactSubmission, error) {
	var c model.ContactSubmission
	var read int
	var converted sql.NullInt64
	err := sc.Scan(
		&c.ID, &c.Name, &c.Email, &c.Company, &c.Phone, &c.Message,
		&read, &converted, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.IsRead = read != 0
	if converted.Valid {
		c.ConvertedClientID = &converted.Int64
	}
	return &c, nil
}

var contactColumns = []string{
	"id", "name", "email", "company", "phone", "message", "is_read", "converted_client_id", "created_at",
}

const contactCols = `id, name, email, company, phone, message, is_read, converted_client_id, created_at`

func (s *ContactStore) Create(ctx context.Context, in ContactInput) (*model.ContactSubmission, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO contact_submissions (name, email, company, phone, message) VALUES (?, ?, ?, ?, ?)`,
		in.Name, in.Email, in.Company, in.Phone, in.Message,
	)
	if err != nil {
		return nil, fmt.Errorf("insert contact submission: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ContactStore) GetByID(ctx context.Context, id int64) (*model.ContactSubmission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contactCols+` FROM contact_submissions WHERE id = ?`, id)
	c, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contact submission: %w", err)
	}
	return c, nil
}

func (s *ContactStore) List(ctx context.Context, f ContactFilter) ([]model.ContactSubmission, error) {
	qb := sq.Select(contactColumns...).From("contact_submissions").OrderBy("created_at DESC", "id DESC")
	if f.Read != nil {
		qb = qb.Where(sq.Eq{"is_read": boolInt(*f.Read)})
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		qb = qb.Where(sq.Or{
			sq.Like{"name": like},
			sq.Like{"email": like},
			sq.Like{"message": like},
		})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build contact query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contact submissions: %w", err)
	}
	defer rows.Close()

	var subs []model.ContactSubmission
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact submission: %w", err)
		}
		subs = append(subs, *c)
	}
	return subs, rows.Err()
}

func (s *ContactStore) MarkRead(ctx context.Context, id int64, read bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE contact_submissions SET is_read = ? WHERE id = ?`, boolInt(read), id)
	if err != nil {
		return fmt.Errorf("mark contact submission read: %w", err)
	}
	return nil
}

func (s *ContactStore) SetConverted(ctx context.Context, id, clientID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE contact_submissions SET converted_client_id = ?, is_read = 1 WHERE id = ?`,
		clientID, id,
	)
	if err != nil {
		return fmt.Errorf("set contact submission converted: %w", err)
	}
	return nil
}

func (s *ContactStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM contact_submissions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete contact submission: %w", err)
	}
	return nil
}
