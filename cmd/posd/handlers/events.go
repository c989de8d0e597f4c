package handlers

// Event names pushed to status clients. Declared once so the handlers and
// the websocket wiring cannot drift apart on a rename.
const (
	EventSyncStarted         = "sync.started"
	EventSyncCompleted       = "sync.completed"
	EventSyncFailed          = "sync.failed"
	EventQueueChanged        = "queue.changed"
	EventBackupCreated       = "backup.created"
	EventBackupRestored      = "backup.restored"
	EventConnectivityChanged = "connectivity.changed"
	EventStatus              = "status"
)
