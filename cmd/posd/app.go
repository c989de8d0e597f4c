package main

import (
	"context"
	"time"

	"github.com/smoocho/pos-terminal/internal/backup"
	"github.com/smoocho/pos-terminal/internal/config"
	"github.com/smoocho/pos-terminal/internal/connectivity"
	"github.com/smoocho/pos-terminal/internal/errors"
	"github.com/smoocho/pos-terminal/internal/logging"
	"github.com/smoocho/pos-terminal/internal/models"
	"github.com/smoocho/pos-terminal/internal/queue"
	"github.com/smoocho/pos-terminal/internal/startup"
	"github.com/smoocho/pos-terminal/internal/store"
	syncpkg "github.com/smoocho/pos-terminal/internal/sync"
	"github.com/smoocho/pos-terminal/internal/sync/conflict"
)

// app holds the wired subsystem. Every command builds one; serve additionally
// starts the background loops and the HTTP server.
type app struct {
	cfg *config.Config

	store      *store.Store
	monitor    *connectivity.Monitor
	queue      *queue.Queue
	reconciler *syncpkg.Reconciler
	backups    *backup.Manager
	loader     *startup.Loader

	deviceID string
	userID   string
}

// neverOnline is the prober used when no remote is configured; the terminal
// runs purely locally and every drain/sync attempt is skipped.
type neverOnline struct{}

func (neverOnline) Probe(ctx context.Context) bool { return false }

// newApp opens the store, runs migrations and wires every component.
// needRemote makes a missing REMOTE_URL a hard error for commands that
// cannot do anything without one.
func newApp(ctx context.Context, cfg *config.Config, needRemote bool) (*app, error) {
	if needRemote && cfg.RemoteURL == "" {
		return nil, errors.New(errors.ErrSyncNotConfigured, "REMOTE_URL is not set")
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(); err != nil {
		st.Close()
		return nil, err
	}

	deviceID, err := deviceIdentity(ctx, st, cfg.DeviceID)
	if err != nil {
		st.Close()
		return nil, err
	}
	userID := cfg.UserID
	if userID == "" {
		userID = "local"
	}

	var prober connectivity.Prober = neverOnline{}
	if cfg.RemoteURL != "" {
		prober = &connectivity.HTTPProber{URL: cfg.RemoteURL + "/health"}
	}
	monitor := connectivity.NewMonitor(prober, connectivity.Options{
		PollInterval: cfg.ConnectivityPollInterval,
		Debounce:     cfg.ConnectivityDebounce,
		SettleDelay:  cfg.ConnectivitySettleDelay,
	})
	// Seed the state with one synchronous probe so the first decisions do
	// not wait a full poll interval.
	monitor.SetOnline(prober.Probe(ctx))

	q, err := queue.New(st, st, monitor.IsOnline, queue.Options{
		MaxSize:    cfg.QueueMaxSize,
		MaxRetries: cfg.QueueMaxRetries,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	remote := syncpkg.NewHTTPRemote(cfg.RemoteURL, deviceID, userID, cfg.RemoteTimeout)
	reconciler := syncpkg.NewReconciler(st, remote, conflict.LastWriteWins{}, monitor, q, syncpkg.Options{
		DeviceID:    deviceID,
		UserID:      userID,
		MaxRetries:  cfg.SyncMaxRetries,
		BackoffBase: cfg.SyncBackoffBase,
	})

	backups := backup.NewManager(st, backup.Options{
		Retention: cfg.BackupRetention,
		Interval:  cfg.BackupInterval,
		DeviceID:  deviceID,
	})
	if err := backups.CheckIntegrity(ctx); err != nil {
		st.Close()
		return nil, err
	}

	loader := startup.NewLoader(st, reconciler, monitor, startup.Options{
		CacheMaxAge:   cfg.CacheMaxAge,
		RemoteTimeout: cfg.RemoteTimeout,
	})

	logging.Info("Terminal subsystem wired", map[string]interface{}{
		"dataDir":  cfg.DataDir,
		"deviceId": deviceID,
		"remote":   cfg.RemoteURL != "",
	})

	return &app{
		cfg:        cfg,
		store:      st,
		monitor:    monitor,
		queue:      q,
		reconciler: reconciler,
		backups:    backups,
		loader:     loader,
		deviceID:   deviceID,
		userID:     userID,
	}, nil
}

// close releases everything in reverse wiring order.
func (a *app) close() {
	a.reconciler.Stop()
	a.store.Close()
}

// deviceIdentity returns the configured device id, or the persisted one,
// minting and persisting a fresh id on first run.
func deviceIdentity(ctx context.Context, st *store.Store, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	raw, ok, err := st.GetKV(ctx, store.KeyDeviceID)
	if err != nil {
		return "", err
	}
	if ok {
		return string(raw), nil
	}
	id := models.NewDeviceID(time.Now())
	if err := st.SetKV(ctx, store.KeyDeviceID, []byte(id)); err != nil {
		return "", err
	}
	logging.Info("Minted device identity", map[string]interface{}{"deviceId": id})
	return id, nil
}
