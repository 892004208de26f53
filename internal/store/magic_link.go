package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/brightwork/internal/model"
)

type MagicLinkStore struct {
	db *sql.DB
}

func NewMagicLinkStore(db *sql.DB) *MagicLinkStore {
	return &MagicLinkStore{db: db}
}

func scanMagicLink(sc scanner) (*model.MagicLink, error) {
	var ml model.MagicLink
	var used int
	var usedAt sql.NullTime

	err := sc.Scan(
		&ml.ID, &ml.Token, &ml.Email, &ml.Role,
		&ml.ExpiresAt, &used, &usedAt, &ml.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	ml.Used = used != 0
	ml.UsedAt = timePtr(usedAt)
	return &ml, nil
}

const magicLinkCols = `id, token, email, role, expires_at, used, used_at, created_at`

// Create inserts an unused magic link. The caller supplies the token.
func (s *MagicLinkStore) Create(ctx context.Context, token, email string, role model.Role, expiresAt time.Time) (*model.MagicLink, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO magic_links (token, email, role, expires_at) VALUES (?, ?, ?, ?)`,
		token, email, role, dbTime(expiresAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert magic link: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+magicLinkCols+` FROM magic_links WHERE id = ?`, id)
	ml, err := scanMagicLink(row)
	if err != nil {
		return nil, fmt.Errorf("get magic link: %w", err)
	}
	return ml, nil
}

// GetByToken returns the link whatever its state. Expiry and use are judged
// by the caller.
func (s *MagicLinkStore) GetByToken(ctx context.Context, token string) (*model.MagicLink, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+magicLinkCols+` FROM magic_links WHERE token = ?`, token)
	ml, err := scanMagicLink(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get magic link by token: %w", err)
	}
	return ml, nil
}

// MarkUsed flips used from 0 to 1. It reports false when another caller got
// there first.
func (s *MagicLinkStore) MarkUsed(ctx context.Context, id int64, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE magic_links SET used = 1, used_at = ? WHERE id = ? AND used = 0`,
		dbTime(at), id,
	)
	if err != nil {
		return false, fmt.Errorf("mark magic link used: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// DeleteOlderThan purges links created before cutoff, used or not.
func (s *MagicLinkStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM magic_links WHERE created_at < ?`, dbTime(cutoff).Format(time.DateTime))
	if err != nil {
		return 0, fmt.Errorf("delete old magic links: %w", err)
	}
	return result.RowsAffected()
}
