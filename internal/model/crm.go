package model

import "time"

type ProjectStatus string

const (
	ProjectStatusPlanning   ProjectStatus = "planning"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusReview     ProjectStatus = "review"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusOnHold     ProjectStatus = "on_hold"
)

type Project struct {
	ID          int64         `json:"id"`
	ClientID    int64         `json:"client_id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Status      ProjectStatus `json:"status"`
	StartDate   *time.Time    `json:"start_date"`
	DueDate     *time.Time    `json:"due_date"`
	Budget      int64         `json:"budget"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type ProjectUpdate struct {
	ID              int64     `json:"id"`
	ProjectID       int64     `json:"project_id"`
	Title           string    `json:"title"`
	Body            string    `json:"body"`
	VisibleToClient bool      `json:"visible_to_client"`
	CreatedAt       time.Time `json:"created_at"`
}

type InvoiceStatus string

const (
	InvoiceStatusDraft InvoiceStatus = "draft"
	InvoiceStatusSent  InvoiceStatus = "sent"
	InvoiceStatusPaid  InvoiceStatus = "paid"
	InvoiceStatusVoid  InvoiceStatus = "void"
)

type Invoice struct {
	ID        int64         `json:"id"`
	ProjectID int64         `json:"project_id"`
	Number    string        `json:"number"`
	Amount    int64         `json:"amount"`
	Status    InvoiceStatus `json:"status"`
	DueDate   *time.Time    `json:"due_date"`
	PaidAt    *time.Time    `json:"paid_at"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type ContactSubmission struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Company           string    `json:"company"`
	Phone             string    `json:"phone"`
	Message           string    `json:"message"`
	IsRead            bool      `json:"is_read"`
	ConvertedClientID *int64    `json:"converted_client_id"`
	CreatedAt         time.Time `json:"created_at"`
}
