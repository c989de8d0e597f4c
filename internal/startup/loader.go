// Package startup assembles the terminal's working dataset at boot: a fresh
// startup cache when one exists, the durable store otherwise, and a
// best-effort remote reconciliation that never blocks the terminal from
// opening.
package startup

import (
	"context"
	"encoding/json"
	"time"

	"github.com/smoocho/pos-terminal/internal/errors"
	"github.com/smoocho/pos-terminal/internal/logging"
	"github.com/smoocho/pos-terminal/internal/models"
	"github.com/smoocho/pos-terminal/internal/store"
)

// Source names where the startup dataset came from.
type Source string

const (
	SourceCache  Source = "cache"
	SourceStore  Source = "store"
	SourceRemote Source = "remote"
)

// Phase is reported to the progress callback as loading advances.
type Phase string

const (
	PhaseChecking Phase = "checking"
	PhaseLoading  Phase = "loading"
	PhaseSyncing  Phase = "syncing"
	PhaseReady    Phase = "ready"
	PhaseError    Phase = "error"
)

// Store is the durable store surface the loader needs.
type Store interface {
	SnapshotAll(ctx context.Context) (*models.Snapshot, error)
	GetKV(ctx context.Context, key string) ([]byte, bool, error)
	SetKV(ctx context.Context, key string, value []byte) error
}

// Syncer runs one snapshot reconciliation.
type Syncer interface {
	SyncData(ctx context.Context) (bool, error)
	LastSyncTime() time.Time
}

// Connectivity reports whether the terminal is online.
type Connectivity interface {
	IsOnline() bool
}

// Data is the assembled startup dataset.
type Data struct {
	Snapshot     *models.Snapshot `json:"snapshot"`
	Source       Source           `json:"source"`
	OfflineMode  bool             `json:"offlineMode"`
	LastSyncTime time.Time        `json:"lastSyncTime"`
}

// cacheEntry is the persisted startup cache: a snapshot plus the instant it
// was written, used for the freshness check.
type cacheEntry struct {
	CachedAt time.Time        `json:"cachedAt"`
	Snapshot *models.Snapshot `json:"snapshot"`
}

// Options configures a Loader.
type Options struct {
	CacheMaxAge   time.Duration // cache older than this is ignored
	RemoteTimeout time.Duration // bound on the best-effort startup sync
	OnPhase       func(Phase)   // optional progress callback
}

// Loader runs the startup sequence.
type Loader struct {
	store  Store
	syncer Syncer
	conn   Connectivity

	cacheMaxAge   time.Duration
	remoteTimeout time.Duration
	onPhase       func(Phase)

	now func() time.Time
}

// NewLoader creates a Loader.
func NewLoader(st Store, syncer Syncer, conn Connectivity, opts Options) *Loader {
	if opts.CacheMaxAge <= 0 {
		opts.CacheMaxAge = 24 * time.Hour
	}
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = 10 * time.Second
	}
	return &Loader{
		store:         st,
		syncer:        syncer,
		conn:          conn,
		cacheMaxAge:   opts.CacheMaxAge,
		remoteTimeout: opts.RemoteTimeout,
		onPhase:       opts.OnPhase,
		now:           time.Now,
	}
}

func (l *Loader) phase(p Phase) {
	if l.onPhase != nil {
		l.onPhase(p)
	}
}

// Initialize assembles the startup dataset. A fresh cache short-circuits the
// store read; otherwise the store is loaded and the cache rewritten. When
// online, one bounded reconciliation runs so the terminal opens with current
// data, but any failure there degrades to the local dataset rather than
// blocking the boot.
func (l *Loader) Initialize(ctx context.Context) (*Data, error) {
	l.phase(PhaseChecking)

	online := l.conn != nil && l.conn.IsOnline()
	data := &Data{OfflineMode: !online}

	if snap := l.freshCache(ctx); snap != nil {
		data.Snapshot = snap
		data.Source = SourceCache
	} else {
		l.phase(PhaseLoading)
		snap, err := l.store.SnapshotAll(ctx)
		if err != nil {
			l.phase(PhaseError)
			return nil, errors.Wrap(errors.ErrDatabase, "failed to load store at startup", err)
		}
		data.Snapshot = snap
		data.Source = SourceStore
		l.writeCache(ctx, snap)
	}

	if online && l.syncer != nil {
		l.phase(PhaseSyncing)
		syncCtx, cancel := context.WithTimeout(ctx, l.remoteTimeout)
		ran, err := l.syncer.SyncData(syncCtx)
		cancel()
		switch {
		case err != nil:
			logging.Warn("Startup sync failed, continuing with local data", map[string]interface{}{
				"error": err.Error(),
			})
		case ran:
			// The reconciliation may have replaced the store; re-read so the
			// dataset handed to the terminal reflects it.
			snap, err := l.store.SnapshotAll(ctx)
			if err != nil {
				l.phase(PhaseError)
				return nil, errors.Wrap(errors.ErrDatabase, "failed to reload store after startup sync", err)
			}
			data.Snapshot = snap
			data.Source = SourceRemote
			l.writeCache(ctx, snap)
		}
	}

	if l.syncer != nil {
		data.LastSyncTime = l.syncer.LastSyncTime()
	}

	l.phase(PhaseReady)
	logging.Info("Startup dataset assembled", map[string]interface{}{
		"source":  string(data.Source),
		"offline": data.OfflineMode,
		"counts":  data.Snapshot.Counts(),
	})
	return data, nil
}

// freshCache returns the cached snapshot when one exists and is younger than
// the max age. Corrupt or stale caches are ignored.
func (l *Loader) freshCache(ctx context.Context) *models.Snapshot {
	raw, ok, err := l.store.GetKV(ctx, store.KeyStartupCache)
	if err != nil || !ok {
		return nil
	}
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		logging.Warn("Startup cache is corrupt, ignoring", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	if entry.Snapshot == nil || l.now().Sub(entry.CachedAt) > l.cacheMaxAge {
		return nil
	}
	logging.Debug("Using startup cache", map[string]interface{}{
		"cachedAt": entry.CachedAt,
	})
	return entry.Snapshot
}

// writeCache persists the snapshot as the next boot's fast path. Failures
// are logged and ignored; the cache is an optimization, not a record.
func (l *Loader) writeCache(ctx context.Context, snap *models.Snapshot) {
	raw, err := json.Marshal(cacheEntry{CachedAt: l.now(), Snapshot: snap})
	if err != nil {
		logging.Warn("Failed to encode startup cache", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := l.store.SetKV(ctx, store.KeyStartupCache, raw); err != nil {
		logging.Warn("Failed to write startup cache", map[string]interface{}{"error": err.Error()})
	}
}
