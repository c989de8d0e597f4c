package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smoocho/pos-terminal/internal/queue"
)

// recorder collects sync/drain invocations in order.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeSyncer struct {
	rec *recorder
}

func (f *fakeSyncer) SyncData(ctx context.Context) (bool, error) {
	f.rec.add("sync")
	return true, nil
}

type fakeDrainer struct {
	rec     *recorder
	pending int
}

func (f *fakeDrainer) ProcessAll(ctx context.Context) queue.ProcessResult {
	f.rec.add("drain")
	completed := f.pending
	f.pending = 0
	return queue.ProcessResult{Completed: completed}
}

func (f *fakeDrainer) PendingCount() int { return f.pending }

// fakeConn lets the test fire connectivity transitions directly.
type fakeConn struct {
	mu        sync.Mutex
	online    bool
	listeners []func(bool)
}

func (c *fakeConn) IsOnline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

func (c *fakeConn) OnChange(fn func(online bool)) func() {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
	return func() {}
}

func (c *fakeConn) flip(online bool) {
	c.mu.Lock()
	c.online = online
	fns := append(([]func(bool))(nil), c.listeners...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(online)
	}
}

func TestReconnectDrainsQueueBeforeSyncing(t *testing.T) {
	rec := &recorder{}
	conn := &fakeConn{}
	s := New(&fakeSyncer{rec: rec}, &fakeDrainer{rec: rec, pending: 3}, conn, Config{
		SyncInterval:  time.Hour, // only the reconnect path should fire
		QueueInterval: time.Hour,
	})
	s.Start(context.Background())
	defer s.Stop()

	conn.flip(true)

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"drain", "sync"}, rec.snapshot(),
		"queued operations replay before the snapshot exchange")
}

func TestGoingOfflineTriggersNothing(t *testing.T) {
	rec := &recorder{}
	conn := &fakeConn{online: true}
	s := New(&fakeSyncer{rec: rec}, &fakeDrainer{rec: rec}, conn, Config{
		SyncInterval:  time.Hour,
		QueueInterval: time.Hour,
	})
	s.Start(context.Background())
	defer s.Stop()

	conn.flip(false)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestPeriodicSyncRunsWhileOnline(t *testing.T) {
	rec := &recorder{}
	conn := &fakeConn{online: true}
	s := New(&fakeSyncer{rec: rec}, &fakeDrainer{rec: rec}, conn, Config{
		SyncInterval:  10 * time.Millisecond,
		QueueInterval: time.Hour,
	})
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		for _, e := range rec.snapshot() {
			if e == "sync" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestPeriodicDrainSkipsEmptyQueue(t *testing.T) {
	rec := &recorder{}
	conn := &fakeConn{online: true}
	s := New(&fakeSyncer{rec: rec}, &fakeDrainer{rec: rec, pending: 0}, conn, Config{
		SyncInterval:  time.Hour,
		QueueInterval: 10 * time.Millisecond,
	})
	s.Start(context.Background())
	defer s.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, rec.snapshot(), "nothing to drain, nothing runs")
}

func TestLateConnectivityNotificationAfterStop(t *testing.T) {
	rec := &recorder{}
	conn := &fakeConn{}
	s := New(&fakeSyncer{rec: rec}, &fakeDrainer{rec: rec, pending: 1}, conn, Config{
		SyncInterval:  time.Hour,
		QueueInterval: time.Hour,
	})
	s.Start(context.Background())
	s.Stop()

	// The monitor may still deliver a transition that was in flight when Stop
	// ran; it must not start new work after the wait group has drained.
	conn.flip(true)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestStartIsIdempotentAndStopWaits(t *testing.T) {
	rec := &recorder{}
	conn := &fakeConn{}
	s := New(&fakeSyncer{rec: rec}, &fakeDrainer{rec: rec}, conn, Config{})

	ctx := context.Background()
	s.Start(ctx)
	s.Start(ctx)
	assert.True(t, s.IsRunning())

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop() // second stop must not panic
}
