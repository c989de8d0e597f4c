package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smoocho/pos-terminal/internal/errors"
)

func (a *API) handleBackupList(w http.ResponseWriter, r *http.Request) {
	infos, err := a.Backups.ListBackups(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"backups": infos})
}

func (a *API) handleBackupCreate(w http.ResponseWriter, r *http.Request) {
	b, err := a.Backups.CreateBackup(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if b == nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"status": "backup already in progress",
		})
		return
	}
	a.broadcast(EventBackupCreated, map[string]interface{}{
		"id":   b.ID,
		"size": b.Size,
	})
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":        b.ID,
		"timestamp": b.Timestamp,
		"size":      b.Size,
		"checksum":  b.Checksum,
	})
}

func (a *API) handleBackupRestore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Backups.RestoreFromBackup(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	a.broadcast(EventBackupRestored, map[string]interface{}{"id": id})
	writeJSON(w, http.StatusOK, map[string]string{"restored": id})
}

type pathRequest struct {
	Path string `json:"path"`
}

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeError(w, errors.New(errors.ErrValidation, "export requires a target path"))
		return
	}
	res, err := a.Backups.ExportData(r.Context(), req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleImport(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeError(w, errors.New(errors.ErrValidation, "import requires a source path"))
		return
	}
	res, err := a.Backups.ImportData(r.Context(), req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	a.broadcast(EventBackupRestored, map[string]interface{}{"path": req.Path})
	writeJSON(w, http.StatusOK, res)
}
