package backup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smoocho/pos-terminal/internal/errors"
	"github.com/smoocho/pos-terminal/internal/models"
	"github.com/smoocho/pos-terminal/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestManager(t *testing.T, st *store.Store, retention int) *Manager {
	t.Helper()
	return NewManager(st, Options{Retention: retention, DeviceID: "d1"})
}

func seedProduct(t *testing.T, st *store.Store, id string) {
	t.Helper()
	now := time.Unix(1700000000, 0)
	require.NoError(t, st.AddProduct(context.Background(), models.Product{
		ID: id, Name: "Item " + id, Price: 1.0, Category: "misc",
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}))
}

func TestCreateBackupSealsSnapshot(t *testing.T) {
	st := openTestStore(t)
	seedProduct(t, st, "p1")
	m := newTestManager(t, st, 5)
	ctx := context.Background()

	b, err := m.CreateBackup(ctx)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, models.BackupVersion, b.Version)
	assert.Equal(t, len(b.Data), b.Size)
	assert.NotZero(t, b.Checksum)

	payload, err := m.Verify(b)
	require.NoError(t, err)
	assert.Len(t, payload.Products, 1)
	assert.Equal(t, "d1", payload.Meta.DeviceID)
}

func TestVerifyRejectsTamperedBackup(t *testing.T) {
	st := openTestStore(t)
	seedProduct(t, st, "p1")
	m := newTestManager(t, st, 5)

	b, err := m.CreateBackup(context.Background())
	require.NoError(t, err)

	b.Data[0] ^= 0xFF
	_, err = m.Verify(b)
	assert.True(t, errors.Is(err, errors.ErrChecksumMismatch))
	assert.True(t, errors.IsIntegrity(err))
}

func TestRetentionEvictsOldest(t *testing.T) {
	st := openTestStore(t)
	m := newTestManager(t, st, 2)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		b, err := m.CreateBackup(ctx)
		require.NoError(t, err)
		ids = append(ids, b.ID)
	}

	infos, err := m.ListBackups(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, ids[1], infos[0].ID)
	assert.Equal(t, ids[2], infos[1].ID)
}

func TestCreateBackupSingleFlight(t *testing.T) {
	st := openTestStore(t)
	m := newTestManager(t, st, 5)

	m.createMu.Lock()
	b, err := m.CreateBackup(context.Background())
	m.createMu.Unlock()

	assert.NoError(t, err)
	assert.Nil(t, b, "a second concurrent create is skipped, not queued")
}

func TestRestoreFromBackupReplacesStore(t *testing.T) {
	st := openTestStore(t)
	seedProduct(t, st, "original")
	m := newTestManager(t, st, 5)
	ctx := context.Background()

	b, err := m.CreateBackup(ctx)
	require.NoError(t, err)

	// Mutate after the backup; the restore must return to the sealed state.
	seedProduct(t, st, "added-later")
	require.NoError(t, st.SetKV(ctx, store.KeyStartupCache, []byte("stale")))

	require.NoError(t, m.RestoreFromBackup(ctx, b.ID))

	snap, err := st.SnapshotAll(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Products, 1)
	assert.Equal(t, "original", snap.Products[0].ID)

	_, ok, _ := st.GetKV(ctx, store.KeyStartupCache)
	assert.False(t, ok, "startup cache describes pre-restore data and must go")
}

func TestRestoreUnknownBackup(t *testing.T) {
	st := openTestStore(t)
	m := newTestManager(t, st, 5)

	err := m.RestoreFromBackup(context.Background(), "backup_missing")
	assert.True(t, errors.Is(err, errors.ErrBackupNotFound))
}

func TestRestoreCorruptBackupLeavesStoreUntouched(t *testing.T) {
	st := openTestStore(t)
	seedProduct(t, st, "keep-me")
	m := newTestManager(t, st, 5)
	ctx := context.Background()

	b, err := m.CreateBackup(ctx)
	require.NoError(t, err)

	// Corrupt the retained copy in place.
	backups, err := m.loadAll(ctx)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	backups[0].Data[0] ^= 0xFF
	require.NoError(t, m.saveAll(ctx, backups))

	err = m.RestoreFromBackup(ctx, b.ID)
	assert.True(t, errors.IsIntegrity(err))

	snap, err := st.SnapshotAll(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Products, 1)
	assert.Equal(t, "keep-me", snap.Products[0].ID)
}

func TestRestoreMidTransactionFailureLeavesStoreIntact(t *testing.T) {
	st := openTestStore(t)
	seedProduct(t, st, "survivor")
	m := newTestManager(t, st, 5)
	ctx := context.Background()

	// A validly sealed backup whose payload cannot be loaded: the duplicate
	// product id fails the bulk insert after the clears, inside the restore
	// transaction, so the rollback must bring the prior state back.
	now := time.Unix(1700000000, 0)
	dup := models.Product{ID: "dup", Name: "Twice", CreatedAt: now, UpdatedAt: now}
	payload := models.BackupPayload{
		Products: []models.Product{dup, dup},
		Meta: models.BackupMeta{
			Version:   models.BackupVersion,
			Timestamp: now,
			DeviceID:  "d1",
		},
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	b := models.Backup{
		ID:        models.NewBackupID(now),
		Timestamp: now,
		Data:      data,
		Size:      len(data),
		Checksum:  xxhash.Sum64(data),
		Version:   models.BackupVersion,
		DeviceID:  "d1",
	}
	require.NoError(t, m.saveAll(ctx, []models.Backup{b}))

	err = m.RestoreFromBackup(ctx, b.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBackupFailed))

	snap, err := st.SnapshotAll(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Products, 1)
	assert.Equal(t, "survivor", snap.Products[0].ID)
}

func TestExportImportRoundTrip(t *testing.T) {
	st := openTestStore(t)
	seedProduct(t, st, "p1")
	seedProduct(t, st, "p2")
	m := newTestManager(t, st, 5)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "export", "pos.json.gz")
	res, err := m.ExportData(ctx, path)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.NotZero(t, res.Checksum)

	// Wipe and re-import into a fresh store.
	st2 := openTestStore(t)
	m2 := newTestManager(t, st2, 5)

	imported, err := m2.ImportData(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, imported.Products)

	snap, err := st2.SnapshotAll(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Products, 2)
}

func TestImportRejectsNonExportFile(t *testing.T) {
	st := openTestStore(t)
	m := newTestManager(t, st, 5)

	path := filepath.Join(t.TempDir(), "junk.gz")
	require.NoError(t, os.WriteFile(path, []byte("definitely not gzip"), 0o644))

	_, err := m.ImportData(context.Background(), path)
	assert.True(t, errors.IsIntegrity(err))
}

func TestCheckIntegritySeedsDefaultsOnce(t *testing.T) {
	st := openTestStore(t)
	m := newTestManager(t, st, 5)
	ctx := context.Background()

	require.NoError(t, m.CheckIntegrity(ctx))
	settings, err := st.ListSettings(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, settings)

	keys := make(map[string]bool)
	for _, s := range settings {
		keys[s.Key] = true
	}
	for _, want := range []string{"store_name", "store_address", "store_phone", "tax_rate", "currency"} {
		assert.True(t, keys[want], "missing default %s", want)
	}

	// A second pass must not duplicate anything.
	require.NoError(t, m.CheckIntegrity(ctx))
	again, err := st.ListSettings(ctx)
	require.NoError(t, err)
	assert.Len(t, again, len(settings))
}
