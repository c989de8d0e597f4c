// Package scheduler drives the background reconciliation loops: periodic
// snapshot sync while online, periodic queue draining, and the catch-up pass
// that runs when connectivity returns.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/smoocho/pos-terminal/internal/errors"
	"github.com/smoocho/pos-terminal/internal/logging"
	"github.com/smoocho/pos-terminal/internal/queue"
)

// Syncer runs one snapshot reconciliation.
type Syncer interface {
	SyncData(ctx context.Context) (bool, error)
}

// Drainer applies queued operations in order.
type Drainer interface {
	ProcessAll(ctx context.Context) queue.ProcessResult
	PendingCount() int
}

// Connectivity exposes debounced online/offline transitions.
type Connectivity interface {
	OnChange(fn func(online bool)) func()
	IsOnline() bool
}

// Config holds scheduler intervals.
type Config struct {
	SyncInterval  time.Duration // how often to reconcile when online
	QueueInterval time.Duration // how often to attempt a queue drain
	SyncTimeout   time.Duration // upper bound on a single reconciliation
}

// DefaultConfig returns the default scheduler intervals.
func DefaultConfig() Config {
	return Config{
		SyncInterval:  30 * time.Second,
		QueueInterval: 30 * time.Second,
		SyncTimeout:   5 * time.Minute,
	}
}

// Scheduler owns the background goroutines. The syncer and drainer both
// guard against overlapping runs themselves, so the scheduler only decides
// when to poke them.
type Scheduler struct {
	syncer  Syncer
	drainer Drainer
	conn    Connectivity
	cfg     Config

	mu        sync.Mutex
	isRunning bool
	unsub     func()

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Scheduler. Start must be called to begin the loops.
func New(syncer Syncer, drainer Drainer, conn Connectivity, cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = def.SyncInterval
	}
	if cfg.QueueInterval <= 0 {
		cfg.QueueInterval = def.QueueInterval
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = def.SyncTimeout
	}
	return &Scheduler{
		syncer:  syncer,
		drainer: drainer,
		conn:    conn,
		cfg:     cfg,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the periodic loops and subscribes to connectivity
// transitions. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	if s.conn != nil {
		s.unsub = s.conn.OnChange(func(online bool) {
			if !online {
				return
			}
			// Connectivity is back: replay local writes first so the
			// snapshot pushed by the sync reflects them. A notification
			// already in flight when Stop runs must not touch the wait
			// group, so running state is re-checked under the lock.
			s.mu.Lock()
			if !s.isRunning {
				s.mu.Unlock()
				return
			}
			s.wg.Add(1)
			s.mu.Unlock()
			go func() {
				defer s.wg.Done()
				s.catchUp(ctx)
			}()
		})
	}

	s.wg.Add(2)
	go s.syncLoop(ctx)
	go s.drainLoop(ctx)

	logging.Info("Background scheduler started", map[string]interface{}{
		"syncInterval":  s.cfg.SyncInterval.String(),
		"queueInterval": s.cfg.QueueInterval.String(),
	})
}

// Stop halts the loops and waits for in-flight work to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	logging.Info("Background scheduler stopped", nil)
}

// IsRunning reports whether the loops are active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *Scheduler) syncLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if s.conn != nil && !s.conn.IsOnline() {
				continue
			}
			s.runSync(ctx)
		}
	}
}

func (s *Scheduler) drainLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.QueueInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if s.drainer.PendingCount() == 0 {
				continue
			}
			res := s.drainer.ProcessAll(ctx)
			if !res.Skipped {
				logging.Debug("Queue drain pass finished", map[string]interface{}{
					"completed": res.Completed,
					"failed":    res.Failed,
					"remaining": res.Remaining,
				})
			}
		}
	}
}

// catchUp runs after a reconnection: drain the queue, then reconcile.
func (s *Scheduler) catchUp(ctx context.Context) {
	res := s.drainer.ProcessAll(ctx)
	if !res.Skipped {
		logging.Info("Replayed queued operations after reconnect", map[string]interface{}{
			"completed": res.Completed,
			"failed":    res.Failed,
			"remaining": res.Remaining,
		})
	}
	s.runSync(ctx)
}

func (s *Scheduler) runSync(ctx context.Context) {
	syncCtx, cancel := context.WithTimeout(ctx, s.cfg.SyncTimeout)
	defer cancel()

	ran, err := s.syncer.SyncData(syncCtx)
	if err != nil {
		logging.ErrorWithCode("Scheduled sync failed", string(errors.CodeOf(err)), err, nil)
		return
	}
	if ran {
		logging.Debug("Scheduled sync completed", nil)
	}
}
