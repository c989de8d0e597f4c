// Package connectivity observes online/offline transitions. It combines
// host-reported signals with periodic probing so a missed event is caught on
// the next poll, and debounces transitions so a flapping link does not storm
// listeners.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/smoocho/pos-terminal/internal/logging"
)

// Prober answers whether the remote side is currently reachable.
type Prober interface {
	Probe(ctx context.Context) bool
}

// HTTPProber probes the remote health endpoint with a short HEAD request.
type HTTPProber struct {
	URL     string
	Timeout time.Duration
}

// Probe reports whether the endpoint answered at all. Any HTTP status counts
// as reachable; only transport errors mean offline.
func (p *HTTPProber) Probe(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// Options configures a Monitor.
type Options struct {
	PollInterval time.Duration // how often to probe (default 5s)
	Debounce     time.Duration // minimum stability before notifying (default 2s)
	SettleDelay  time.Duration // extra delay before online notifications (default 3s)
	InitialState bool
}

// Monitor tracks connectivity state. IsOnline reflects the latest observation
// immediately; listener notifications are debounced, and the transition to
// online is additionally delayed by SettleDelay so consumers do not act on a
// connection that is still flapping.
type Monitor struct {
	prober       Prober
	pollInterval time.Duration
	debounce     time.Duration
	settleDelay  time.Duration

	mu        sync.Mutex
	online    bool
	notified  bool // last state listeners were told about
	pending   *time.Timer
	listeners map[int]func(online bool)
	nextID    int

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewMonitor creates a Monitor. Start must be called to begin polling.
func NewMonitor(prober Prober, opts Options) *Monitor {
	if opts.PollInterval == 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.Debounce == 0 {
		opts.Debounce = 2 * time.Second
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = 3 * time.Second
	}
	return &Monitor{
		prober:       prober,
		pollInterval: opts.PollInterval,
		debounce:     opts.Debounce,
		settleDelay:  opts.SettleDelay,
		online:       opts.InitialState,
		notified:     opts.InitialState,
		listeners:    make(map[int]func(bool)),
		stopCh:       make(chan struct{}),
	}
}

// IsOnline returns the current connectivity state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnChange registers a listener for debounced connectivity transitions and
// returns an unsubscribe function.
func (m *Monitor) OnChange(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// SetOnline reports a host-level connectivity signal (lifecycle event).
// The state takes effect immediately; listeners are notified after the
// debounce window.
func (m *Monitor) SetOnline(online bool) {
	m.transition(online)
}

// Start begins periodic probing. Stop cancels it.
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.transition(m.prober.Probe(ctx))
			}
		}
	}()
}

// Stop halts polling and cancels any pending notification.
func (m *Monitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
	m.mu.Lock()
	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
	m.mu.Unlock()
}

// transition updates the state and schedules a listener notification. Going
// offline notifies after the debounce window; coming online waits debounce
// plus the settle delay. A flip back before the timer fires cancels it.
func (m *Monitor) transition(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if online == m.online {
		return
	}
	m.online = online
	logging.Info("Connectivity state changed", map[string]interface{}{"online": online})

	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
	delay := m.debounce
	if online {
		delay += m.settleDelay
	}
	m.pending = time.AfterFunc(delay, func() { m.commit(online) })
}

// commit delivers the transition to listeners if the state still holds.
func (m *Monitor) commit(online bool) {
	m.mu.Lock()
	if m.online != online || m.notified == online {
		m.mu.Unlock()
		return
	}
	m.notified = online
	fns := make([]func(bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}
