package model

import "time"

type BackupStatus string

const (
	BackupStatusPending   BackupStatus = "pending"
	BackupStatusUploading BackupStatus = "uploading"
	BackupStatusCompleted BackupStatus = "completed"
	BackupStatusFailed    BackupStatus = "failed"
)

// Backup records one encrypted database archive in object storage.
type Backup struct {
	ID       int64        `json:"id"`
	Filename string       `json:"filename"`
	S3Key    string       `json:"-"`
	Status   BackupStatus `json:"status"`
	// SizeBytes is the size of the encrypted archive, set on completion.
	SizeBytes    int64      `json:"size_bytes"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Available reports whether the archive can be downloaded or restored.
func (b *Backup) Available() bool {
	return b != nil && b.Status == BackupStatusCompleted && b.S3Key != ""
}
