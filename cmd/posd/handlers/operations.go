package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/smoocho/pos-terminal/internal/errors"
	"github.com/smoocho/pos-terminal/internal/models"
)

type enqueueRequest struct {
	EntityType models.EntityType `json:"entityType"`
	Action     models.Action     `json:"action"`
	Payload    json.RawMessage   `json:"payload"`
}

// handleEnqueue records a mutation in the offline queue. The write is
// accepted locally regardless of connectivity; draining happens later.
func (a *API) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(errors.ErrValidation, "malformed operation request", err))
		return
	}

	op, err := a.Queue.Enqueue(req.EntityType, req.Action, req.Payload, a.UserID, a.DeviceID)
	if err != nil {
		writeError(w, err)
		return
	}

	a.broadcast(EventQueueChanged, map[string]interface{}{
		"pending": a.Queue.PendingCount(),
	})
	writeJSON(w, http.StatusAccepted, op)
}

func (a *API) handleQueueList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"operations": a.Queue.List(),
		"stats":      a.Queue.Stats(),
	})
}

func (a *API) handleQueueProcess(w http.ResponseWriter, r *http.Request) {
	res := a.Queue.ProcessAll(r.Context())
	if !res.Skipped {
		a.broadcast(EventQueueChanged, map[string]interface{}{
			"pending": a.Queue.PendingCount(),
		})
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleQueueRetryFailed(w http.ResponseWriter, r *http.Request) {
	reset := a.Queue.RetryFailed()
	writeJSON(w, http.StatusOK, map[string]int{"reset": reset})
}

func (a *API) handleQueueClearFailed(w http.ResponseWriter, r *http.Request) {
	removed := a.Queue.ClearFailed()
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
