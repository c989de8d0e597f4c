// Package handlers implements the localhost admin API: status inspection,
// manual sync, queue management and backup operations.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/smoocho/pos-terminal/internal/backup"
	"github.com/smoocho/pos-terminal/internal/connectivity"
	"github.com/smoocho/pos-terminal/internal/errors"
	"github.com/smoocho/pos-terminal/internal/logging"
	"github.com/smoocho/pos-terminal/internal/queue"
	syncpkg "github.com/smoocho/pos-terminal/internal/sync"
)

// Broadcaster pushes an event to connected status clients.
type Broadcaster interface {
	Broadcast(event string, data map[string]interface{})
}

// API bundles the components the admin endpoints operate on.
type API struct {
	Queue      *queue.Queue
	Reconciler *syncpkg.Reconciler
	Backups    *backup.Manager
	Monitor    *connectivity.Monitor
	Events     Broadcaster

	DeviceID string
	UserID   string
}

// Routes builds the chi router for the admin API.
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", a.handleHealth)
	r.Get("/status", a.handleStatus)

	r.Post("/sync", a.handleSync)

	r.Post("/operations", a.handleEnqueue)
	r.Get("/queue", a.handleQueueList)
	r.Post("/queue/process", a.handleQueueProcess)
	r.Post("/queue/retry-failed", a.handleQueueRetryFailed)
	r.Delete("/queue/failed", a.handleQueueClearFailed)

	r.Get("/backups", a.handleBackupList)
	r.Post("/backups", a.handleBackupCreate)
	r.Post("/backups/{id}/restore", a.handleBackupRestore)
	r.Post("/export", a.handleExport)
	r.Post("/import", a.handleImport)

	return r
}

func (a *API) broadcast(event string, data map[string]interface{}) {
	if a.Events != nil {
		a.Events.Broadcast(event, data)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to encode response", err, nil)
	}
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.ErrValidation:
		status = http.StatusBadRequest
	case errors.ErrNotFound, errors.ErrBackupNotFound, errors.ErrOperationNotFound:
		status = http.StatusNotFound
	case errors.ErrSyncNotConfigured:
		status = http.StatusConflict
	case errors.ErrNetworkUnavailable, errors.ErrRemoteUnavailable, errors.ErrSyncTimeout:
		status = http.StatusBadGateway
	case errors.ErrChecksumMismatch, errors.ErrCorruptedBackup:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    string(code),
			"message": err.Error(),
		},
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "pos-terminal",
	})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sync":  a.Reconciler.Status(),
		"queue": a.Queue.Stats(),
	})
}
