// Package backup manages checksum-sealed copies of the durable store:
// periodic and on-demand backup creation, retention, verification and
// restore, plus file export/import for migrating a terminal.
package backup

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/smoocho/pos-terminal/internal/errors"
	"github.com/smoocho/pos-terminal/internal/logging"
	"github.com/smoocho/pos-terminal/internal/models"
	"github.com/smoocho/pos-terminal/internal/store"
)

// Store is the durable store surface the backup manager needs.
type Store interface {
	SnapshotAll(ctx context.Context) (*models.Snapshot, error)
	ReplaceAll(ctx context.Context, snap *models.Snapshot) error
	GetKV(ctx context.Context, key string) ([]byte, bool, error)
	SetKV(ctx context.Context, key string, value []byte) error
	DeleteKV(ctx context.Context, key string) error
	CountSettings(ctx context.Context) (int, error)
	BulkInsertSettings(ctx context.Context, settings []models.Setting) error
}

// Info is the listing view of a backup: everything except the payload.
type Info struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Size      int       `json:"size"`
	Checksum  uint64    `json:"checksum"`
	Version   string    `json:"version"`
	DeviceID  string    `json:"deviceId"`
}

// Options configures a Manager.
type Options struct {
	Retention  int           // how many backups to keep (oldest evicted)
	Interval   time.Duration // periodic backup cadence; 0 disables the timer
	DeviceID   string
	ClientName string
}

// Manager owns the backup lifecycle. Creation is single-flight: a second
// caller while one is running gets (nil, nil) rather than a duplicate.
type Manager struct {
	store      Store
	retention  int
	interval   time.Duration
	deviceID   string
	clientName string

	createMu sync.Mutex // single-flight guard for CreateBackup

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	now func() time.Time
}

// NewManager creates a backup Manager. Start must be called to enable the
// periodic timer.
func NewManager(st Store, opts Options) *Manager {
	if opts.Retention <= 0 {
		opts.Retention = 10
	}
	if opts.ClientName == "" {
		opts.ClientName = "pos-terminal"
	}
	return &Manager{
		store:      st,
		retention:  opts.Retention,
		interval:   opts.Interval,
		deviceID:   opts.DeviceID,
		clientName: opts.ClientName,
		stopCh:     make(chan struct{}),
		now:        time.Now,
	}
}

// Start launches the periodic backup timer. No-op when the interval is zero.
func (m *Manager) Start(ctx context.Context) {
	if m.interval <= 0 {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				if _, err := m.CreateBackup(ctx); err != nil {
					logging.Error("Periodic backup failed", err, nil)
				}
			}
		}
	}()
}

// Stop halts the periodic timer.
func (m *Manager) Stop() {
	m.once.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

// Flush takes a final backup; called on graceful shutdown so the newest
// state is always recoverable.
func (m *Manager) Flush(ctx context.Context) error {
	_, err := m.CreateBackup(ctx)
	return err
}

// CreateBackup snapshots the store into a sealed backup and appends it to
// the retained list, evicting the oldest beyond the retention limit.
// Returns (nil, nil) when a backup is already being created.
func (m *Manager) CreateBackup(ctx context.Context) (*models.Backup, error) {
	if !m.createMu.TryLock() {
		logging.Debug("Backup already in progress, skipping", nil)
		return nil, nil
	}
	defer m.createMu.Unlock()

	snap, err := m.store.SnapshotAll(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrBackupFailed, "failed to snapshot store", err)
	}

	ts := m.now()
	payload := models.BackupPayload{
		Products:  snap.Products,
		Inventory: snap.Inventory,
		Settings:  snap.Settings,
		Orders:    snap.Orders,
		Meta: models.BackupMeta{
			Version:    models.BackupVersion,
			Timestamp:  ts,
			DeviceID:   m.deviceID,
			ClientName: m.clientName,
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(errors.ErrBackupFailed, "failed to encode backup payload", err)
	}

	b := models.Backup{
		ID:        models.NewBackupID(ts),
		Timestamp: ts,
		Data:      data,
		Size:      len(data),
		Checksum:  xxhash.Sum64(data),
		Version:   models.BackupVersion,
		DeviceID:  m.deviceID,
	}

	backups, err := m.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	backups = append(backups, b)
	if evicted := len(backups) - m.retention; evicted > 0 {
		dropped := make([]string, 0, evicted)
		for _, old := range backups[:evicted] {
			dropped = append(dropped, old.ID)
		}
		backups = backups[evicted:]
		logging.Debug("Evicted oldest backups beyond retention", map[string]interface{}{
			"evicted":   dropped,
			"retention": m.retention,
		})
	}
	if err := m.saveAll(ctx, backups); err != nil {
		return nil, err
	}

	logging.Info("Backup created", map[string]interface{}{
		"id":   b.ID,
		"size": b.Size,
	})
	return &b, nil
}

// ListBackups returns the retained backups, oldest first, without payloads.
func (m *Manager) ListBackups(ctx context.Context) ([]Info, error) {
	backups, err := m.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]Info, len(backups))
	for i, b := range backups {
		infos[i] = Info{
			ID:        b.ID,
			Timestamp: b.Timestamp,
			Size:      b.Size,
			Checksum:  b.Checksum,
			Version:   b.Version,
			DeviceID:  b.DeviceID,
		}
	}
	return infos, nil
}

// Verify checks a backup's seal: the recomputed checksum must match and the
// payload must decode. The decoded payload is returned so restore does not
// parse twice.
func (m *Manager) Verify(b *models.Backup) (*models.BackupPayload, error) {
	if sum := xxhash.Sum64(b.Data); sum != b.Checksum {
		return nil, errors.New(errors.ErrChecksumMismatch, "backup checksum does not match its data")
	}
	var payload models.BackupPayload
	if err := json.Unmarshal(b.Data, &payload); err != nil {
		return nil, errors.Wrap(errors.ErrCorruptedBackup, "backup payload does not decode", err)
	}
	return &payload, nil
}

// RestoreFromBackup replaces the store contents with a retained backup.
// Verification happens before any mutation: a corrupt backup leaves the
// store untouched.
func (m *Manager) RestoreFromBackup(ctx context.Context, id string) error {
	backups, err := m.loadAll(ctx)
	if err != nil {
		return err
	}
	var target *models.Backup
	for i := range backups {
		if backups[i].ID == id {
			target = &backups[i]
			break
		}
	}
	if target == nil {
		return errors.New(errors.ErrBackupNotFound, "no backup with id "+id)
	}

	payload, err := m.Verify(target)
	if err != nil {
		return err
	}
	if err := m.restorePayload(ctx, payload); err != nil {
		return err
	}

	logging.Info("Restored store from backup", map[string]interface{}{
		"id":        id,
		"timestamp": target.Timestamp,
	})
	return nil
}

// restorePayload swaps the store contents for the payload in one transaction
// and drops the now-stale startup cache.
func (m *Manager) restorePayload(ctx context.Context, payload *models.BackupPayload) error {
	snap := &models.Snapshot{
		Products:  payload.Products,
		Inventory: payload.Inventory,
		Settings:  payload.Settings,
		Orders:    payload.Orders,
	}
	if err := m.store.ReplaceAll(ctx, snap); err != nil {
		return errors.Wrap(errors.ErrBackupFailed, "failed to apply backup payload", err)
	}
	if err := m.store.DeleteKV(ctx, store.KeyStartupCache); err != nil {
		logging.Warn("Failed to invalidate startup cache after restore", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return nil
}

func (m *Manager) loadAll(ctx context.Context) ([]models.Backup, error) {
	data, ok, err := m.store.GetKV(ctx, store.KeyBackups)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var backups []models.Backup
	if err := json.Unmarshal(data, &backups); err != nil {
		// The retained list itself is unreadable. Keep the store working
		// and start a fresh list rather than wedging every backup call.
		logging.ErrorWithCode("Retained backup list is corrupt, starting fresh",
			string(errors.ErrCorruptedBackup), err, nil)
		return nil, nil
	}
	return backups, nil
}

func (m *Manager) saveAll(ctx context.Context, backups []models.Backup) error {
	data, err := json.Marshal(backups)
	if err != nil {
		return errors.Wrap(errors.ErrBackupFailed, "failed to encode backup list", err)
	}
	if err := m.store.SetKV(ctx, store.KeyBackups, data); err != nil {
		return errors.Wrap(errors.ErrBackupFailed, "failed to persist backup list", err)
	}
	return nil
}

// defaultSettings are seeded when the settings table is empty so the
// terminal boots with a usable configuration after a wipe or first run.
func defaultSettings(now time.Time) []models.Setting {
	mk := func(key, value, typ string) models.Setting {
		return models.Setting{
			ID:        "setting_" + key,
			Key:       key,
			Value:     value,
			Type:      typ,
			UpdatedAt: now,
		}
	}
	return []models.Setting{
		mk("store_name", "My Store", "string"),
		mk("store_address", "", "string"),
		mk("store_phone", "", "string"),
		mk("tax_rate", "0", "number"),
		mk("currency", "USD", "string"),
	}
}

// CheckIntegrity runs the startup health pass: when the settings table is
// empty the defaults are seeded.
func (m *Manager) CheckIntegrity(ctx context.Context) error {
	n, err := m.store.CountSettings(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if err := m.store.BulkInsertSettings(ctx, defaultSettings(m.now())); err != nil {
		return err
	}
	logging.Info("Seeded default settings", nil)
	return nil
}
