package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/brightwork/internal/apperr"
	"github.com/dukerupert/brightwork/internal/store"
	"github.com/dukerupert/brightwork/internal/websocket"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps err through the apperr taxonomy. Validation errors carry
// their field list; anything that maps to 500 is logged and answered with a
// generic message.
func writeError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	status := apperr.HTTPStatus(err)

	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, status, map[string]any{"error": "validation failed", "fields": ve.Fields})
		return
	}
	if status == http.StatusInternalServerError {
		logger.Error(msg, "error", err)
		writeMessage(w, status, "internal error")
		return
	}
	writeMessage(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// pathID parses {id} and answers 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseIDParam(r)
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// emptyIfNil keeps list endpoints from answering null.
func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Broadcaster pushes live changes to connected admin dashboards.
type Broadcaster interface {
	Broadcast(msg websocket.Message)
}

func broadcast(hub Broadcaster, entity, action string, id int64) {
	if hub != nil {
		hub.Broadcast(websocket.NewMessage(entity, action, id, nil))
	}
}

// storeError turns constraint failures into conflicts and leaves everything
// else to writeError.
func storeError(w http.ResponseWriter, logger *slog.Logger, msg string, err error, conflict string) {
	if store.IsUniqueViolation(err) || store.IsForeignKeyViolation(err) {
		writeMessage(w, http.StatusConflict, conflict)
		return
	}
	writeError(w, logger, msg, err)
}
