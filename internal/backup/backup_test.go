package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/brightwork/internal/database"
	"github.com/dukerupert/brightwork/internal/model"
	"github.com/dukerupert/brightwork/internal/notify"
	"github.com/dukerupert/brightwork/internal/store"
)

type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	putErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, *input.Key)
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

type fakeNotifier struct{ events []notify.Event }

func (f *fakeNotifier) Notify(_ context.Context, ev notify.Event) { f.events = append(f.events, ev) }

var testConfig = Config{
	S3:            S3Config{Bucket: "backups", Region: "auto", AccessKey: "ak", SecretKey: "sk"},
	Passphrase:    "correct horse battery staple",
	RetentionDays: 30,
	Hour:          3,
}

type testEnv struct {
	m        *Manager
	s3       *mockS3Client
	store    *store.BackupStore
	notifier *fakeNotifier
}

func setupBackupTest(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	env := &testEnv{s3: newMockS3(), store: store.NewBackupStore(db), notifier: &fakeNotifier{}}
	env.m = NewManager(testConfig, db, env.store, env.notifier, slog.New(slog.NewTextHandler(io.Discard, nil)))
	env.m.client = env.s3
	return env
}

func TestManagerDisabledWithoutConfig(t *testing.T) {
	m := NewManager(Config{}, nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if m.Configured() {
		t.Fatal("expected unconfigured manager")
	}
	if m.Status().State != StateDisabled {
		t.Errorf("state = %s, want disabled", m.Status().State)
	}
	if _, err := m.RunNow(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("RunNow err = %v, want ErrNotConfigured", err)
	}

	// passphrase is required too
	cfg := testConfig
	cfg.Passphrase = ""
	if NewManager(cfg, nil, nil, nil, nil).Configured() {
		t.Error("manager without passphrase should be unconfigured")
	}
}

func TestRunNowUploadsEncryptedSnapshot(t *testing.T) {
	env := setupBackupTest(t)
	ctx := context.Background()

	b, err := env.m.RunNow(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if b.Status != model.BackupStatusCompleted {
		t.Errorf("status = %s, want completed", b.Status)
	}
	if b.CompletedAt == nil {
		t.Error("completed_at not set")
	}

	sealed, ok := env.s3.objects[b.S3Key]
	if !ok {
		t.Fatalf("object %s not uploaded", b.S3Key)
	}
	if int64(len(sealed)) != b.SizeBytes {
		t.Errorf("size_bytes = %d, want %d", b.SizeBytes, len(sealed))
	}
	plain, err := Decrypt(sealed, testConfig.Passphrase)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.HasPrefix(plain, []byte("SQLite format 3\x00")) {
		t.Error("archive does not contain a SQLite database")
	}

	st := env.m.Status()
	if st.State != StateIdle || st.LastBackup == nil || st.InProgress {
		t.Errorf("status = %+v, want idle with last backup", st)
	}
	if len(env.notifier.events) != 1 || env.notifier.events[0].Action != "completed" {
		t.Errorf("events = %+v, want one completed event", env.notifier.events)
	}
}

func TestRunNowUploadFailure(t *testing.T) {
	env := setupBackupTest(t)
	env.s3.putErr = errors.New("connection reset")

	if _, err := env.m.RunNow(context.Background()); err == nil {
		t.Fatal("expected upload error")
	}

	list, err := env.m.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Status != model.BackupStatusFailed {
		t.Fatalf("records = %+v, want one failed", list)
	}
	if list[0].ErrorMessage == "" {
		t.Error("error message not recorded")
	}
	if env.m.Status().State != StateError {
		t.Errorf("state = %s, want error", env.m.Status().State)
	}
	if len(env.notifier.events) != 1 || env.notifier.events[0].Action != "failed" {
		t.Errorf("events = %+v, want one failed event", env.notifier.events)
	}
}

func TestRunNowRejectsConcurrentRun(t *testing.T) {
	env := setupBackupTest(t)
	if _, err := env.m.begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := env.m.RunNow(context.Background()); !errors.Is(err, ErrInProgress) {
		t.Errorf("err = %v, want ErrInProgress", err)
	}
}

func TestRestore(t *testing.T) {
	env := setupBackupTest(t)
	ctx := context.Background()

	b, err := env.m.RunNow(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	dst := filepath.Join(t.TempDir(), "restored.db")
	if err := env.m.Restore(ctx, b.ID, dst); err != nil {
		t.Fatalf("restore: %v", err)
	}

	if err := env.m.Restore(ctx, 999, dst); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing backup err = %v, want ErrNotFound", err)
	}
}

func TestInitLoadsLastBackup(t *testing.T) {
	env := setupBackupTest(t)
	ctx := context.Background()
	if _, err := env.m.RunNow(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	fresh := NewManager(testConfig, nil, env.store, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := fresh.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if fresh.Status().LastBackup == nil {
		t.Error("last backup not loaded")
	}
}

func TestCleanup(t *testing.T) {
	env := setupBackupTest(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old, err := env.store.Create(ctx, "old.db.enc", "db/old.db.enc", now.AddDate(0, 0, -45))
	if err != nil {
		t.Fatalf("create old: %v", err)
	}
	if _, err := env.store.Create(ctx, "new.db.enc", "db/new.db.enc", now.AddDate(0, 0, -1)); err != nil {
		t.Fatalf("create new: %v", err)
	}

	n, err := env.m.Cleanup(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Errorf("removed = %d, want 1", n)
	}
	if len(env.s3.deleted) != 1 || env.s3.deleted[0] != old.S3Key {
		t.Errorf("deleted objects = %v, want [%s]", env.s3.deleted, old.S3Key)
	}
}

func TestRunReturnsOnCancel(t *testing.T) {
	m := NewManager(Config{Hour: -1}, nil, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
