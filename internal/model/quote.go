package model

import "time"

type QuoteStatus string

const (
	QuoteStatusPendingReview QuoteStatus = "pending_review"
	QuoteStatusSentToClient  QuoteStatus = "sent_to_client"
	QuoteStatusAccepted      QuoteStatus = "accepted"
	QuoteStatusDeclined      QuoteStatus = "declined"
	QuoteStatusPaid          QuoteStatus = "paid"
)

// Quote amounts are integer minor units (pence) of the base currency.
// QuoteAmount is fixed at creation; FinalAmount, when set, is what gets charged.
type Quote struct {
	ID              int64       `json:"id"`
	Token           string      `json:"token"`
	Name            string      `json:"name"`
	Email           string      `json:"email"`
	Company         string      `json:"company"`
	Phone           string      `json:"phone"`
	ProjectType     string      `json:"project_type"`
	Features        []string    `json:"features"`
	Timeline        string      `json:"timeline"`
	BudgetRange     string      `json:"budget_range"`
	Requirements    string      `json:"requirements"`
	QuoteAmount     int64       `json:"quote_amount"`
	Status          QuoteStatus `json:"status"`
	AdminNotes      *string     `json:"admin_notes"`
	FinalAmount     *int64      `json:"final_amount"`
	PaymentIntentID *string     `json:"payment_intent_id,omitempty"`
	ExpiresAt       time.Time   `json:"expires_at"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// PayableAmount returns the amount a client is charged on acceptance.
func (q *Quote) PayableAmount() int64 {
	if q.FinalAmount != nil {
		return *q.FinalAmount
	}
	return q.QuoteAmount
}
