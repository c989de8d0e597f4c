package handlers

import (
	"net/http"
)

// handleSync forces an immediate reconciliation, clearing any persistent
// failure state first.
func (a *API) handleSync(w http.ResponseWriter, r *http.Request) {
	a.broadcast(EventSyncStarted, nil)

	ran, err := a.Reconciler.ForceSync(r.Context())
	if err != nil {
		a.broadcast(EventSyncFailed, map[string]interface{}{"error": err.Error()})
		writeError(w, err)
		return
	}

	status := a.Reconciler.Status()
	if ran {
		a.broadcast(EventSyncCompleted, map[string]interface{}{
			"lastSyncTime": status.LastSyncTime,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"synced": ran,
		"status": status,
	})
}
