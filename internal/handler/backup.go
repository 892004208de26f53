package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/brightwork/internal/backup"
)

// backupRunTimeout bounds a backup started from the dashboard.
const backupRunTimeout = 30 * time.Minute

type BackupHandler struct {
	manager *backup.Manager
	logger  *slog.Logger
}

func NewBackupHandler(m *backup.Manager, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, logger: logger}
}

// Status handles GET /api/admin/backups/status
func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Status())
}

// List handles GET /api/admin/backups
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	backups, err := h.manager.List(r.Context(), 50)
	if err != nil {
		writeError(w, h.logger, "list backups", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(backups))
}

// Run handles POST /api/admin/backups. The backup runs in the background;
// progress arrives over the websocket.
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Configured() {
		writeError(w, h.logger, "run backup", backup.ErrNotConfigured)
		return
	}
	if h.manager.Status().InProgress {
		writeError(w, h.logger, "run backup", backup.ErrInProgress)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), backupRunTimeout)
	go func() {
		defer cancel()
		if _, err := h.manager.RunNow(ctx); err != nil {
			h.logger.Error("manual backup", "error", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "backup started"})
}

// Download handles GET /api/admin/backups/{id}/download. The archive is
// streamed still encrypted.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	body, record, err := h.manager.Download(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "download backup", err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+record.Filename+`"`)
	if record.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(record.SizeBytes, 10))
	}
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("stream backup", "backup_id", id, "error", err)
	}
}
