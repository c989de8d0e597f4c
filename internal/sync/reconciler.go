package sync

import (
	"context"
	gosync "sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/smoocho/pos-terminal/internal/errors"
	"github.com/smoocho/pos-terminal/internal/logging"
	"github.com/smoocho/pos-terminal/internal/models"
	"github.com/smoocho/pos-terminal/internal/store"
	"github.com/smoocho/pos-terminal/internal/sync/conflict"
)

// LocalStore is the durable store surface the reconciler needs.
type LocalStore interface {
	SnapshotAll(ctx context.Context) (*models.Snapshot, error)
	ReplaceAll(ctx context.Context, snap *models.Snapshot) error
	GetKV(ctx context.Context, key string) ([]byte, bool, error)
	SetKV(ctx context.Context, key string, value []byte) error
	DeleteKV(ctx context.Context, key string) error
}

// ConnectivitySource reports whether the terminal is online.
type ConnectivitySource interface {
	IsOnline() bool
}

// PendingCounter reports how many operations await apply.
type PendingCounter interface {
	PendingCount() int
}

// Status is the observable sync state, consumed by the UI badge and the
// admin API. No exceptions escape the reconciler; this surface is the only
// way failure state is communicated outward.
type Status struct {
	IsOnline          bool      `json:"isOnline"`
	IsSyncing         bool      `json:"isSyncing"`
	PendingOperations int       `json:"pendingOperations"`
	LastSyncTime      time.Time `json:"lastSyncTime"`
	RetryCount        int       `json:"retryCount"`
	SyncFailed        bool      `json:"syncFailed"`
	LastError         string    `json:"lastError,omitempty"`
}

// Options configures a Reconciler.
type Options struct {
	DeviceID    string
	UserID      string
	MaxRetries  int           // bounded retry budget for failed sync attempts
	BackoffBase time.Duration // first retry delay; doubles per attempt
}

// Reconciler owns the snapshot exchange. Concurrent SyncData callers are
// collapsed into a single in-flight reconciliation.
type Reconciler struct {
	store    LocalStore
	remote   Remote
	strategy conflict.Strategy
	conn     ConnectivitySource
	pending  PendingCounter

	deviceID    string
	userID      string
	maxRetries  int
	backoffBase time.Duration

	group singleflight.Group

	mu           gosync.Mutex
	isSyncing    bool
	lastSyncTime time.Time
	retryCount   int
	failed       bool
	lastErr      error
	retryTimer   *time.Timer
	listeners    map[int]func(Status)
	nextID       int

	now func() time.Time
}

// NewReconciler wires a Reconciler and restores the persisted lastSync
// instant from the KV area.
func NewReconciler(st LocalStore, remote Remote, strategy conflict.Strategy, conn ConnectivitySource, pending PendingCounter, opts Options) *Reconciler {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 5 * time.Second
	}
	r := &Reconciler{
		store:       st,
		remote:      remote,
		strategy:    strategy,
		conn:        conn,
		pending:     pending,
		deviceID:    opts.DeviceID,
		userID:      opts.UserID,
		maxRetries:  opts.MaxRetries,
		backoffBase: opts.BackoffBase,
		listeners:   make(map[int]func(Status)),
		now:         time.Now,
	}
	if data, ok, err := st.GetKV(context.Background(), store.KeyLastSyncTime); err == nil && ok {
		if t, perr := time.Parse(time.RFC3339Nano, string(data)); perr == nil {
			r.lastSyncTime = t
		}
	}
	return r
}

// Stop cancels any scheduled retry.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if r.retryTimer != nil {
		r.retryTimer.Stop()
		r.retryTimer = nil
	}
	r.mu.Unlock()
}

// Status returns the current observable sync state.
func (r *Reconciler) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusLocked()
}

func (r *Reconciler) statusLocked() Status {
	s := Status{
		IsSyncing:    r.isSyncing,
		LastSyncTime: r.lastSyncTime,
		RetryCount:   r.retryCount,
		SyncFailed:   r.failed,
	}
	if r.lastErr != nil {
		s.LastError = r.lastErr.Error()
	}
	if r.conn != nil {
		s.IsOnline = r.conn.IsOnline()
	}
	if r.pending != nil {
		s.PendingOperations = r.pending.PendingCount()
	}
	return s
}

// OnStatus registers a status listener and returns an unsubscribe function.
func (r *Reconciler) OnStatus(fn func(Status)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners, id)
	}
}

// NotifyChanged pushes a fresh status to listeners; wired to queue and
// connectivity changes so the UI badge stays current between syncs.
func (r *Reconciler) NotifyChanged() {
	r.notify()
}

func (r *Reconciler) notify() {
	r.mu.Lock()
	s := r.statusLocked()
	fns := make([]func(Status), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// LastSyncTime returns the instant of the last successful reconciliation.
func (r *Reconciler) LastSyncTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSyncTime
}

// SyncData reconciles the local snapshot with the remote one. Returns true
// when a reconciliation ran to completion. Returns (false, nil) when offline
// or when a previous attempt exhausted its retries and is waiting for a
// forced retry; identity misconfiguration is an error.
func (r *Reconciler) SyncData(ctx context.Context) (bool, error) {
	if r.deviceID == "" || r.userID == "" {
		return false, errors.New(errors.ErrSyncNotConfigured, "device or user identity not configured")
	}
	if r.conn != nil && !r.conn.IsOnline() {
		return false, nil
	}
	r.mu.Lock()
	if r.failed {
		r.mu.Unlock()
		logging.Debug("Sync is in failed state, waiting for forced retry", nil)
		return false, nil
	}
	r.mu.Unlock()

	// The retry is armed inside the flight: collapsed callers that share one
	// failed attempt consume a single budget increment, not one each.
	_, err, _ := r.group.Do("sync", func() (interface{}, error) {
		if err := r.syncOnce(ctx); err != nil {
			r.scheduleRetry(err)
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// ForceSync clears a persistent failure and reconciles immediately.
func (r *Reconciler) ForceSync(ctx context.Context) (bool, error) {
	r.mu.Lock()
	r.failed = false
	r.retryCount = 0
	r.lastErr = nil
	if r.retryTimer != nil {
		r.retryTimer.Stop()
		r.retryTimer = nil
	}
	r.mu.Unlock()
	return r.SyncData(ctx)
}

func (r *Reconciler) syncOnce(ctx context.Context) error {
	r.mu.Lock()
	r.isSyncing = true
	r.mu.Unlock()
	r.notify()

	defer func() {
		r.mu.Lock()
		r.isSyncing = false
		r.mu.Unlock()
		r.notify()
	}()

	local, err := r.store.SnapshotAll(ctx)
	if err != nil {
		return err
	}
	local.DeviceID = r.deviceID
	local.UserID = r.userID
	local.LastSync = r.LastSyncTime()
	if local.LastSync.IsZero() {
		local.LastSync = r.now()
	}

	remote, err := r.remote.Fetch(ctx)
	if err != nil {
		return err
	}

	if remote == nil {
		// The remote has never seen this account. Comparing against a
		// fabricated empty snapshot could let it win and destroy the only
		// copy of the data, so bootstrap by pushing the local state.
		ts, err := r.remote.Push(ctx, local)
		if err != nil {
			return err
		}
		logging.Info("First sync: pushed local snapshot to remote", map[string]interface{}{
			"counts": local.Counts(),
		})
		return r.complete(ctx, ts)
	}

	resolution := r.strategy.Resolve(local, remote)
	switch resolution.Winner {
	case conflict.SideLocal:
		ts, err := r.remote.Push(ctx, local)
		if err != nil {
			return err
		}
		logging.Info("Local snapshot newer, pushed to remote", map[string]interface{}{
			"counts": local.Counts(),
		})
		return r.complete(ctx, ts)

	case conflict.SideRemote:
		// Destructive replace inside one transaction: a crash mid-replace
		// cannot leave a half-updated store.
		if err := r.store.ReplaceAll(ctx, remote); err != nil {
			return err
		}
		// The startup cache now describes the losing dataset.
		if err := r.store.DeleteKV(ctx, store.KeyStartupCache); err != nil {
			logging.Warn("Failed to invalidate startup cache after pull", map[string]interface{}{
				"error": err.Error(),
			})
		}
		logging.Info("Remote snapshot newer, replaced local store", map[string]interface{}{
			"counts": remote.Counts(),
		})
		return r.complete(ctx, remote.LastSync)

	default:
		logging.Debug("Snapshots already consistent", nil)
		return r.complete(ctx, local.LastSync)
	}
}

// complete records a successful reconciliation: lastSync is persisted and
// the retry state is reset.
func (r *Reconciler) complete(ctx context.Context, lastSync time.Time) error {
	if err := r.store.SetKV(ctx, store.KeyLastSyncTime, []byte(lastSync.Format(time.RFC3339Nano))); err != nil {
		return err
	}
	r.mu.Lock()
	r.lastSyncTime = lastSync
	r.retryCount = 0
	r.failed = false
	r.lastErr = nil
	r.mu.Unlock()
	return nil
}

// scheduleRetry handles a failed attempt: local state is untouched, the
// retry counter advances, and a bounded exponential backoff timer is armed.
// Exhausting the budget leaves a persistent failed status that only
// ForceSync clears.
func (r *Reconciler) scheduleRetry(cause error) {
	r.mu.Lock()
	r.lastErr = cause

	if !errors.IsTransient(cause) || r.retryCount >= r.maxRetries {
		r.failed = true
		r.mu.Unlock()
		logging.ErrorWithCode("Sync failed permanently", string(errors.ErrSyncFailed), cause,
			map[string]interface{}{"retryCount": r.retryCount})
		r.notify()
		return
	}

	r.retryCount++
	delay := r.backoffBase << uint(r.retryCount-1)
	if r.retryTimer != nil {
		r.retryTimer.Stop()
	}
	r.retryTimer = time.AfterFunc(delay, func() {
		r.SyncData(context.Background())
	})
	attempt := r.retryCount
	r.mu.Unlock()

	logging.Warn("Sync attempt failed, retry scheduled", map[string]interface{}{
		"attempt": attempt,
		"delay":   delay.String(),
		"error":   cause.Error(),
	})
	r.notify()
}
