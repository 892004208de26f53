// Package backup takes encrypted snapshots of the SQLite database and keeps
// them in S3-compatible storage.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "modernc.org/sqlite"

	"github.com/dukerupert/brightwork/internal/apperr"
	"github.com/dukerupert/brightwork/internal/model"
	"github.com/dukerupert/brightwork/internal/notify"
)

var (
	ErrNotConfigured = fmt.Errorf("backup storage not configured: %w", apperr.ErrConflict)
	ErrInProgress    = fmt.Errorf("backup already running: %w", apperr.ErrConflict)
	ErrNotFound      = fmt.Errorf("backup not found: %w", apperr.ErrNotFound)
)

const keyPrefix = "db/"

type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

type Config struct {
	S3         S3Config
	Passphrase string
	// RetentionDays bounds how long archives are kept. Zero keeps them.
	RetentionDays int
	// Hour is the UTC hour of the daily run. Negative disables the schedule.
	Hour int
}

func (c Config) enabled() bool {
	return c.S3.Bucket != "" && c.S3.AccessKey != "" && c.S3.SecretKey != "" && c.Passphrase != ""
}

type Store interface {
	Create(ctx context.Context, filename, s3Key string, startedAt time.Time) (*model.Backup, error)
	GetByID(ctx context.Context, id int64) (*model.Backup, error)
	List(ctx context.Context, limit int) ([]model.Backup, error)
	UpdateStatus(ctx context.Context, id int64, status model.BackupStatus, errorMsg string) error
	UpdateCompleted(ctx context.Context, id, sizeBytes int64, completedAt time.Time) error
	DeleteOlderThan(ctx context.Context, before time.Time) ([]string, error)
	LatestCompleted(ctx context.Context) (*model.Backup, error)
}

type Notifier interface {
	Notify(ctx context.Context, ev notify.Event)
}

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

type Manager struct {
	mu     sync.Mutex
	cfg    Config
	status Status

	db       *sql.DB
	store    Store
	client   s3Client
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewManager(cfg Config, db *sql.DB, st Store, notifier Notifier, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:      cfg,
		db:       db,
		store:    st,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		status:   Status{State: StateDisabled},
	}
	if cfg.enabled() {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (m *Manager) Configured() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client != nil
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Init loads the time of the last completed backup into Status.
func (m *Manager) Init(ctx context.Context) error {
	b, err := m.store.LatestCompleted(ctx)
	if err != nil {
		return err
	}
	if b == nil || b.CompletedAt == nil {
		return nil
	}
	m.mu.Lock()
	m.status.LastBackup = b.CompletedAt
	m.mu.Unlock()
	return nil
}

func (m *Manager) List(ctx context.Context, limit int) ([]model.Backup, error) {
	return m.store.List(ctx, limit)
}

// Run blocks until ctx is done, taking a backup and applying retention once
// a day at the configured hour.
func (m *Manager) Run(ctx context.Context) error {
	if !m.Configured() || m.cfg.Hour < 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.checkSchedule(ctx)
		}
	}
}

func (m *Manager) checkSchedule(ctx context.Context) {
	now := m.now().UTC()
	if now.Hour() != m.cfg.Hour || now.Minute() != 0 {
		return
	}

	if _, err := m.RunNow(ctx); err != nil {
		m.logger.Error("scheduled backup failed", "error", err)
	}
	if n, err := m.Cleanup(ctx); err != nil {
		m.logger.Error("backup cleanup failed", "error", err)
	} else if n > 0 {
		m.logger.Info("old backups removed", "count", n)
	}
}

// begin claims the single backup slot.
func (m *Manager) begin() (s3Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil, ErrNotConfigured
	}
	if m.status.InProgress {
		return nil, ErrInProgress
	}
	m.status = Status{State: StateRunning, InProgress: true, LastBackup: m.status.LastBackup}
	return m.client, nil
}

func (m *Manager) finish(err error, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.status = Status{State: StateError, Error: err.Error(), LastBackup: m.status.LastBackup}
		return
	}
	m.status = Status{State: StateIdle, LastBackup: &at}
}

// RunNow snapshots the database, encrypts it and uploads it. Only one backup
// runs at a time.
func (m *Manager) RunNow(ctx context.Context) (*model.Backup, error) {
	client, err := m.begin()
	if err != nil {
		return nil, err
	}

	started := m.now().UTC()
	filename := fmt.Sprintf("backup-%s.db.enc", started.Format("2006-01-02T150405Z"))
	record, err := m.store.Create(ctx, filename, keyPrefix+filename, started)
	if err != nil {
		m.finish(err, started)
		return nil, fmt.Errorf("create backup record: %w", err)
	}

	size, err := m.upload(ctx, client, record)
	if err != nil {
		m.logger.Error("backup failed", "backup_id", record.ID, "error", err)
		if uerr := m.store.UpdateStatus(ctx, record.ID, model.BackupStatusFailed, err.Error()); uerr != nil {
			m.logger.Error("record backup failure", "backup_id", record.ID, "error", uerr)
		}
		m.finish(err, started)
		m.notify(ctx, "failed", record.ID, "Backup failed", err.Error())
		return nil, err
	}

	completed := m.now().UTC()
	if err := m.store.UpdateCompleted(ctx, record.ID, size, completed); err != nil {
		m.finish(err, started)
		return nil, err
	}
	m.finish(nil, completed)
	m.logger.Info("backup completed", "backup_id", record.ID, "size_bytes", size)
	m.notify(ctx, "completed", record.ID, "Backup completed", filename)

	return m.store.GetByID(ctx, record.ID)
}

func (m *Manager) upload(ctx context.Context, client s3Client, record *model.Backup) (int64, error) {
	if err := m.store.UpdateStatus(ctx, record.ID, model.BackupStatusUploading, ""); err != nil {
		return 0, err
	}

	snapshot, err := m.snapshot(ctx, record.ID)
	if err != nil {
		return 0, err
	}
	sealed, err := Encrypt(snapshot, m.cfg.Passphrase)
	if err != nil {
		return 0, fmt.Errorf("encrypt: %w", err)
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.S3.Bucket),
		Key:           aws.String(record.S3Key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return 0, fmt.Errorf("upload to s3: %v: %w", err, apperr.ErrUpstream)
	}
	return int64(len(sealed)), nil
}

// snapshot writes a consistent copy of the live database with VACUUM INTO
// and returns its bytes.
func (m *Manager) snapshot(ctx context.Context, id int64) ([]byte, error) {
	path := filepath.Join(os.TempDir(), "brightwork-snapshot-"+strconv.FormatInt(id, 10)+".db")
	os.Remove(path)
	defer os.Remove(path)

	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return nil, fmt.Errorf("snapshot database: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

func (m *Manager) notify(ctx context.Context, action string, id int64, title, body string) {
	if m.notifier == nil {
		return
	}
	m.notifier.Notify(ctx, notify.Event{
		Entity: "backup",
		Action: action,
		ID:     id,
		Title:  title,
		Body:   body,
		URL:    "/admin/backups",
	})
}

// Cleanup deletes archives older than the retention period and returns how
// many records were removed. Failed S3 deletes are logged.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client == nil || m.cfg.RetentionDays <= 0 {
		return 0, nil
	}

	before := m.now().UTC().AddDate(0, 0, -m.cfg.RetentionDays)
	keys, err := m.store.DeleteOlderThan(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("delete old backups: %w", err)
	}

	for _, key := range keys {
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.S3.Bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete backup object", "key", key, "error", err)
		}
	}
	return len(keys), nil
}

func (m *Manager) lookup(ctx context.Context, id int64) (s3Client, *model.Backup, error) {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client == nil {
		return nil, nil, ErrNotConfigured
	}
	record, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("get backup: %w", err)
	}
	if !record.Available() {
		return nil, nil, ErrNotFound
	}
	return client, record, nil
}

// Download streams the encrypted archive. The caller closes the reader.
func (m *Manager) Download(ctx context.Context, id int64) (io.ReadCloser, *model.Backup, error) {
	client, record, err := m.lookup(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Key:    aws.String(record.S3Key),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("download from s3: %v: %w", err, apperr.ErrUpstream)
	}
	return result.Body, record, nil
}

// Restore downloads and decrypts backup id into dstPath and checks that the
// result is a healthy SQLite database. The live database is not touched.
func (m *Manager) Restore(ctx context.Context, id int64, dstPath string) error {
	body, _, err := m.Download(ctx, id)
	if err != nil {
		return err
	}
	sealed, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}

	plaintext, err := Decrypt(sealed, m.cfg.Passphrase)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dstPath, plaintext, 0600); err != nil {
		return fmt.Errorf("write restored database: %w", err)
	}

	if err := checkIntegrity(ctx, dstPath); err != nil {
		os.Remove(dstPath)
		return err
	}
	return nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
