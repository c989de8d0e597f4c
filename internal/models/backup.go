package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BackupVersion is the schema version tag written into every backup.
const BackupVersion = "1.0.0"

// BackupMeta is the provenance block embedded in a backup payload.
type BackupMeta struct {
	Version    string    `json:"version"`
	Timestamp  time.Time `json:"timestamp"`
	DeviceID   string    `json:"deviceId"`
	ClientName string    `json:"clientName"`
}

// BackupPayload is the serialized form of the store: all four collections
// plus metadata. The checksum on the enclosing Backup is computed over the
// exact bytes this payload marshals to.
type BackupPayload struct {
	Products  []Product       `json:"products"`
	Inventory []InventoryItem `json:"inventory"`
	Settings  []Setting       `json:"settings"`
	Orders    []Order         `json:"orders"`
	Meta      BackupMeta      `json:"metadata"`
}

// Backup is an independently timestamped, checksum-sealed copy of the
// Durable Local Store. A backup is valid iff recomputing the checksum over
// Data equals Checksum; invalid backups are never restored.
type Backup struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Data      []byte    `json:"data"`
	Size      int       `json:"size"`
	Checksum  uint64    `json:"checksum"`
	Version   string    `json:"version"`
	DeviceID  string    `json:"deviceId"`
}

// NewBackupID builds a backup id of the form backup_<unix-millis>_<suffix>.
func NewBackupID(ts time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("backup_%d_%s", ts.UnixMilli(), suffix)
}

// NewDeviceID builds a device id of the form device_<unix-millis>_<suffix>.
func NewDeviceID(ts time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("device_%d_%s", ts.UnixMilli(), suffix)
}
