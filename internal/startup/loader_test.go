package startup

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smoocho/pos-terminal/internal/errors"
	"github.com/smoocho/pos-terminal/internal/models"
	"github.com/smoocho/pos-terminal/internal/store"
)

// memStore serves snapshots and KV from memory.
type memStore struct {
	snapshot  *models.Snapshot
	kv        map[string][]byte
	snapErr   error
	snapCalls int
}

func newMemStore(snap *models.Snapshot) *memStore {
	if snap == nil {
		snap = &models.Snapshot{}
	}
	return &memStore{snapshot: snap, kv: make(map[string][]byte)}
}

func (m *memStore) SnapshotAll(ctx context.Context) (*models.Snapshot, error) {
	m.snapCalls++
	if m.snapErr != nil {
		return nil, m.snapErr
	}
	cp := *m.snapshot
	return &cp, nil
}

func (m *memStore) GetKV(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := m.kv[key]
	return v, ok, nil
}

func (m *memStore) SetKV(ctx context.Context, key string, value []byte) error {
	m.kv[key] = value
	return nil
}

type fakeSyncer struct {
	ran      bool
	err      error
	called   bool
	lastSync time.Time
}

func (f *fakeSyncer) SyncData(ctx context.Context) (bool, error) {
	f.called = true
	return f.ran, f.err
}

func (f *fakeSyncer) LastSyncTime() time.Time { return f.lastSync }

type fixedOnline bool

func (f fixedOnline) IsOnline() bool { return bool(f) }

func cacheBytes(t *testing.T, cachedAt time.Time, snap *models.Snapshot) []byte {
	t.Helper()
	raw, err := json.Marshal(cacheEntry{CachedAt: cachedAt, Snapshot: snap})
	require.NoError(t, err)
	return raw
}

func TestFreshCacheShortCircuitsStore(t *testing.T) {
	st := newMemStore(&models.Snapshot{Products: []models.Product{{ID: "store"}}})
	st.kv[store.KeyStartupCache] = cacheBytes(t, time.Now().Add(-time.Hour),
		&models.Snapshot{Products: []models.Product{{ID: "cached"}}})

	l := NewLoader(st, nil, fixedOnline(false), Options{CacheMaxAge: 24 * time.Hour})

	data, err := l.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceCache, data.Source)
	require.Len(t, data.Snapshot.Products, 1)
	assert.Equal(t, "cached", data.Snapshot.Products[0].ID)
	assert.Equal(t, 0, st.snapCalls)
	assert.True(t, data.OfflineMode)
}

func TestStaleCacheFallsBackToStore(t *testing.T) {
	st := newMemStore(&models.Snapshot{Products: []models.Product{{ID: "store"}}})
	st.kv[store.KeyStartupCache] = cacheBytes(t, time.Now().Add(-48*time.Hour),
		&models.Snapshot{Products: []models.Product{{ID: "cached"}}})

	l := NewLoader(st, nil, fixedOnline(false), Options{CacheMaxAge: 24 * time.Hour})

	data, err := l.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceStore, data.Source)
	assert.Equal(t, "store", data.Snapshot.Products[0].ID)

	// The fresh load is re-cached for the next boot.
	var entry cacheEntry
	require.NoError(t, json.Unmarshal(st.kv[store.KeyStartupCache], &entry))
	assert.Equal(t, "store", entry.Snapshot.Products[0].ID)
}

func TestCorruptCacheIsIgnored(t *testing.T) {
	st := newMemStore(&models.Snapshot{Products: []models.Product{{ID: "store"}}})
	st.kv[store.KeyStartupCache] = []byte("{broken")

	l := NewLoader(st, nil, fixedOnline(false), Options{})

	data, err := l.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceStore, data.Source)
}

func TestOnlineStartupReconcilesAndReloads(t *testing.T) {
	st := newMemStore(&models.Snapshot{Products: []models.Product{{ID: "local"}}})
	syncer := &fakeSyncer{ran: true, lastSync: time.Unix(1700000000, 0)}
	l := NewLoader(st, syncer, fixedOnline(true), Options{})

	data, err := l.Initialize(context.Background())
	require.NoError(t, err)
	assert.True(t, syncer.called)
	assert.Equal(t, SourceRemote, data.Source)
	assert.False(t, data.OfflineMode)
	assert.Equal(t, syncer.lastSync, data.LastSyncTime)
	assert.Equal(t, 2, st.snapCalls, "store re-read after the reconciliation")
}

func TestStartupSyncFailureDegradesToLocalData(t *testing.T) {
	st := newMemStore(&models.Snapshot{Products: []models.Product{{ID: "local"}}})
	syncer := &fakeSyncer{err: errors.New(errors.ErrSyncTimeout, "remote slow")}
	l := NewLoader(st, syncer, fixedOnline(true), Options{})

	data, err := l.Initialize(context.Background())
	require.NoError(t, err, "a slow remote must not block the terminal")
	assert.Equal(t, SourceStore, data.Source)
	assert.Equal(t, "local", data.Snapshot.Products[0].ID)
}

func TestOfflineStartupSkipsSync(t *testing.T) {
	st := newMemStore(nil)
	syncer := &fakeSyncer{}
	l := NewLoader(st, syncer, fixedOnline(false), Options{})

	data, err := l.Initialize(context.Background())
	require.NoError(t, err)
	assert.False(t, syncer.called)
	assert.True(t, data.OfflineMode)
}

func TestPhaseCallbackSequence(t *testing.T) {
	st := newMemStore(nil)
	var phases []Phase
	l := NewLoader(st, &fakeSyncer{ran: true}, fixedOnline(true), Options{
		OnPhase: func(p Phase) { phases = append(phases, p) },
	})

	_, err := l.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Phase{PhaseChecking, PhaseLoading, PhaseSyncing, PhaseReady}, phases)
}

func TestBrokenStoreIsFatal(t *testing.T) {
	st := newMemStore(nil)
	st.snapErr = errors.New(errors.ErrDatabase, "disk gone")
	l := NewLoader(st, nil, fixedOnline(false), Options{})

	_, err := l.Initialize(context.Background())
	assert.True(t, errors.Is(err, errors.ErrDatabase))
}
