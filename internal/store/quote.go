package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/dukerupert/brightwork/internal/model"
)

type QuoteStore struct {
	db *sql.DB
}

func NewQuoteStore(db *sql.DB) *QuoteStore {
	return &QuoteStore{db: db}
}

// NewQuote carries the fields fixed at intake.
type NewQuote struct {
	Token        string
	Name         string
	Email        string
	Company      string
	Phone        string
	ProjectType  string
	Features     []string
	Timeline     string
	BudgetRange  string
	Requirements string
	QuoteAmount  int64
	ExpiresAt    time.Time
}

// QuoteFilter narrows List. Zero values match everything.
type QuoteFilter struct {
	Status model.QuoteStatus
	Email  string
	Search string
	Limit  uint64
}

func scanQuote(sc scanner) (*model.Quote, error) {
	var q model.Quote
	var features string
	var adminNotes, intentID sql.NullString
	var finalAmount sql.NullInt64

	err := sc.Scan(
		&q.ID, &q.Token, &q.Name, &q.Email, &q.Company, &q.Phone,
		&q.ProjectType, &features, &q.Timeline, &q.BudgetRange, &q.Requirements,
		&q.QuoteAmount, &q.Status, &adminNotes, &finalAmount, &intentID,
		&q.ExpiresAt, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(features), &q.Features); err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}
	if q.Features == nil {
		q.Features = []string{}
	}
	if adminNotes.Valid {
		q.AdminNotes = &adminNotes.String
	}
	if finalAmount.Valid {
		q.FinalAmount = &finalAmount.Int64
	}
	if intentID.Valid {
		q.PaymentIntentID = &intentID.String
	}
	return &q, nil
}

var quoteColumns = []string{
	"id", "token", "name", "email", "company", "phone",
	"project_type", "features", "timeline", "budget_range", "requirements",
	"quote_amount", "status", "admin_notes", "final_amount", "payment_intent_id",
	"expires_at", "created_at", "updated_at",
}

const quoteCols = `id, token, name, email, company, phone, project_type, features, timeline, budget_range, requirements,
	quote_amount, status, admin_notes, final_amount, payment_intent_id, expires_at, created_at, updated_at`

func (s *QuoteStore) Create(ctx context.Context, nq NewQuote) (*model.Quote, error) {
	features := nq.Features
	if features == nil {
		features = []string{}
	}
	featuresJSON, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("encode features: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO quotes (token, name, email, company, phone, project_type, features, timeline, budget_range,
		 requirements, quote_amount, status, expires_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nq.Token, nq.Name, nq.Email, nq.Company, nq.Phone, nq.ProjectType, string(featuresJSON),
		nq.Timeline, nq.BudgetRange, nq.Requirements, nq.QuoteAmount, model.QuoteStatusPendingReview,
		dbTime(nq.ExpiresAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert quote: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *QuoteStore) GetByID(ctx context.Context, id int64) (*model.Quote, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+quoteCols+` FROM quotes WHERE id = ?`, id)
	q, err := scanQuote(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get quote: %w", err)
	}
	return q, nil
}

func (s *QuoteStore) GetByToken(ctx context.Context, token string) (*model.Quote, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+quoteCols+` FROM quotes WHERE token = ?`, token)
	q, err := scanQuote(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get quote by token: %w", err)
	}
	return q, nil
}

// List returns quotes newest first.
func (s *QuoteStore) List(ctx context.Context, f QuoteFilter) ([]model.Quote, error) {
	qb := sq.Select(quoteColumns...).From("quotes").OrderBy("created_at DESC", "id DESC")
	if f.Status != "" {
		qb = qb.Where(sq.Eq{"status": f.Status})
	}
	if f.Email != "" {
		qb = qb.Where(sq.Eq{"email": f.Email})
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		qb = qb.Where(sq.Or{
			sq.Like{"name": like},
			sq.Like{"email": like},
			sq.Like{"company": like},
		})
	}
	if f.Limit > 0 {
		qb = qb.Limit(f.Limit)
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build quote query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	defer rows.Close()

	var quotes []model.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		quotes = append(quotes, *q)
	}
	return quotes, rows.Err()
}

func (s *QuoteStore) UpdateStatus(ctx context.Context, id int64, status model.QuoteStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE quotes SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update quote status: %w", err)
	}
	return nil
}

// Transition moves a quote to status only if it is currently in one of from.
// It reports false when the quote is missing or was in another state.
func (s *QuoteStore) Transition(ctx context.Context, id int64, status model.QuoteStatus, from ...model.QuoteStatus) (bool, error) {
	query, args, err := sq.Update("quotes").
		Set("status", status).
		Set("updated_at", sq.Expr("CURRENT_TIMESTAMP")).
		Where(sq.Eq{"id": id, "status": from}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build quote transition: %w", err)
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition quote: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// MarkAccepted stores the payment intent and moves a sent_to_client quote to
// accepted in one statement. It reports false if the quote had left
// sent_to_client.
func (s *QuoteStore) MarkAccepted(ctx context.Context, id int64, intentID string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE quotes SET status = ?, payment_intent_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`,
		model.QuoteStatusAccepted, intentID, id, model.QuoteStatusSentToClient,
	)
	if err != nil {
		return false, fmt.Errorf("mark quote accepted: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *QuoteStore) UpdateMeta(ctx context.Context, id int64, adminNotes *string, finalAmount *int64) error {
	var notes sql.NullString
	if adminNotes != nil {
		notes = sql.NullString{String: *adminNotes, Valid: true}
	}
	var amount sql.NullInt64
	if finalAmount != nil {
		amount = sql.NullInt64{Int64: *finalAmount, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE quotes SET admin_notes = ?, final_amount = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		notes, amount, id,
	)
	if err != nil {
		return fmt.Errorf("update quote meta: %w", err)
	}
	return nil
}

// Delete reports whether a row was removed.
func (s *QuoteStore) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM quotes WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete quote: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
