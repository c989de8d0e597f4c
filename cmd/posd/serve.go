package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/smoocho/pos-terminal/cmd/posd/handlers"
	"github.com/smoocho/pos-terminal/internal/config"
	"github.com/smoocho/pos-terminal/internal/logging"
	syncpkg "github.com/smoocho/pos-terminal/internal/sync"
	"github.com/smoocho/pos-terminal/internal/sync/scheduler"
)

func newServeCommand(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the terminal daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg())
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	hub := newWSHub()

	// Status fan-out: queue and connectivity changes refresh the sync status
	// pushed to clients.
	a.queue.OnChange(func() {
		a.reconciler.NotifyChanged()
	})
	a.reconciler.OnStatus(func(s syncpkg.Status) {
		hub.Broadcast(handlers.EventStatus, map[string]interface{}{
			"isOnline":          s.IsOnline,
			"isSyncing":         s.IsSyncing,
			"pendingOperations": s.PendingOperations,
			"lastSyncTime":      s.LastSyncTime,
			"retryCount":        s.RetryCount,
			"syncFailed":        s.SyncFailed,
			"lastError":         s.LastError,
		})
	})
	a.monitor.OnChange(func(online bool) {
		hub.Broadcast(handlers.EventConnectivityChanged, map[string]interface{}{"online": online})
	})

	a.monitor.Start(ctx)
	defer a.monitor.Stop()

	sched := scheduler.New(a.reconciler, a.queue, a.monitor, scheduler.Config{
		SyncInterval:  cfg.SyncInterval,
		QueueInterval: cfg.QueueInterval,
	})
	sched.Start(ctx)
	defer sched.Stop()

	a.backups.Start(ctx)
	defer a.backups.Stop()

	// Assemble the working dataset before accepting requests. A failed
	// remote reach degrades to local data; only a broken store is fatal.
	data, err := a.loader.Initialize(ctx)
	if err != nil {
		return err
	}
	logging.Info("Terminal ready", map[string]interface{}{
		"source":  string(data.Source),
		"offline": data.OfflineMode,
	})

	api := &handlers.API{
		Queue:      a.queue,
		Reconciler: a.reconciler,
		Backups:    a.backups,
		Monitor:    a.monitor,
		Events:     hub,
		DeviceID:   a.deviceID,
		UserID:     a.userID,
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Mount("/api", api.Routes())
	router.Get("/ws/status", handleWebSocket(hub))

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Admin API listening", map[string]interface{}{"addr": cfg.ListenAddr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logging.Info("Shutting down", map[string]interface{}{"signal": sig.String()})
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server shutdown failed", err, nil)
	}

	// Final backup so the newest state survives the stop.
	if err := a.backups.Flush(shutdownCtx); err != nil {
		logging.Error("Final backup failed", err, nil)
	}

	return nil
}
