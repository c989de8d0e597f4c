// Package queue implements the persisted operation queue: the ordered list
// of pending mutations recorded while the terminal is offline or a write
// cannot be confirmed remotely.
package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/smoocho/pos-terminal/internal/errors"
	"github.com/smoocho/pos-terminal/internal/logging"
	"github.com/smoocho/pos-terminal/internal/models"
	"github.com/smoocho/pos-terminal/internal/store"
)

// KV is the persistence surface the queue needs: a durable key-value area
// that survives restarts.
type KV interface {
	GetKV(ctx context.Context, key string) ([]byte, bool, error)
	SetKV(ctx context.Context, key string, value []byte) error
}

// Applier applies a single operation against the authoritative store.
type Applier interface {
	ApplyOperation(ctx context.Context, op *models.Operation) error
}

// Options configures a Queue.
type Options struct {
	MaxSize    int // bounded queue size; oldest entries evicted when full
	MaxRetries int // transient failures before an operation is marked failed
}

// Stats summarizes queue contents by status.
type Stats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
}

// ProcessResult reports the outcome of one ProcessAll pass.
type ProcessResult struct {
	Skipped   bool   `json:"skipped"`
	Reason    string `json:"reason,omitempty"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Remaining int    `json:"remaining"`
}

// Queue is the durable FIFO of pending operations. Entries apply strictly in
// enqueue order, one at a time, so causally related mutations against the
// same entity never reorder. The queue persists after every mutation; a
// crash mid-drain loses nothing already enqueued.
type Queue struct {
	mu  sync.Mutex
	ops []*models.Operation

	kv      KV
	applier Applier
	online  func() bool

	maxSize    int
	maxRetries int

	procMu sync.Mutex // single-flight guard for ProcessAll

	onChange func()
	now      func() time.Time
}

// New builds a Queue and restores any persisted entries from the KV area.
func New(kv KV, applier Applier, online func() bool, opts Options) (*Queue, error) {
	if opts.MaxSize <= 0 {
		opts.MaxSize = 1000
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	q := &Queue{
		kv:         kv,
		applier:    applier,
		online:     online,
		maxSize:    opts.MaxSize,
		maxRetries: opts.MaxRetries,
		now:        time.Now,
	}
	if err := q.load(); err != nil {
		return nil, err
	}
	return q, nil
}

// OnChange registers a callback invoked after every queue mutation (for
// status reporting). Only one callback is supported; the scheduler fans out.
func (q *Queue) OnChange(fn func()) {
	q.mu.Lock()
	q.onChange = fn
	q.mu.Unlock()
}

func (q *Queue) load() error {
	data, ok, err := q.kv.GetKV(context.Background(), store.KeyOfflineQueue)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	var ops []*models.Operation
	if err := json.Unmarshal(data, &ops); err != nil {
		// A corrupt queue blob must not brick the terminal; start empty
		// and surface the loss loudly.
		logging.ErrorWithCode("Persisted queue is corrupt, starting empty",
			string(errors.ErrCorruptedBackup), err, nil)
		return nil
	}
	// Anything caught mid-apply by a crash goes back to pending.
	for _, op := range ops {
		if op.Status == models.StatusProcessing {
			op.Status = models.StatusPending
		}
	}
	q.ops = ops
	logging.Info("Restored offline queue", map[string]interface{}{"operations": len(ops)})
	return nil
}

// persist writes the queue to the KV area. Callers hold q.mu.
func (q *Queue) persist() {
	data, err := json.Marshal(q.ops)
	if err != nil {
		logging.Error("Failed to encode offline queue", err, nil)
		return
	}
	if err := q.kv.SetKV(context.Background(), store.KeyOfflineQueue, data); err != nil {
		logging.Error("Failed to persist offline queue", err, nil)
	}
}

func (q *Queue) notify() {
	q.mu.Lock()
	fn := q.onChange
	q.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Enqueue validates and appends a pending operation, evicting the oldest
// entries if the queue is at capacity. It never touches the network.
func (q *Queue) Enqueue(entityType models.EntityType, action models.Action, payload json.RawMessage, userID, deviceID string) (*models.Operation, error) {
	op, err := models.NewOperation(entityType, action, payload, userID, deviceID, q.now())
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	if evicted := len(q.ops) - q.maxSize + 1; evicted > 0 {
		// Lossy but bounded: under prolonged disconnection with high write
		// volume the oldest operations are dropped to admit new ones.
		dropped := make([]string, 0, evicted)
		for _, old := range q.ops[:evicted] {
			dropped = append(dropped, old.ID)
		}
		q.ops = append([]*models.Operation{}, q.ops[evicted:]...)
		logging.Warn("Queue at capacity, evicted oldest operations", map[string]interface{}{
			"evicted": dropped,
			"maxSize": q.maxSize,
		})
	}
	q.ops = append(q.ops, op)
	q.persist()
	q.mu.Unlock()

	logging.Debug("Enqueued operation", map[string]interface{}{
		"id":         op.ID,
		"entityType": string(op.EntityType),
		"action":     string(op.Action),
	})
	q.notify()
	return op, nil
}

// ProcessAll applies every pending operation in FIFO order. It is a no-op if
// a drain is already running or connectivity is down. A transient failure
// stops the pass (the operation stays pending with an incremented retry
// count) so later operations never overtake it; a permanent failure marks
// the operation failed and the pass continues.
func (q *Queue) ProcessAll(ctx context.Context) ProcessResult {
	if q.online != nil && !q.online() {
		return ProcessResult{Skipped: true, Reason: "offline", Remaining: q.PendingCount()}
	}
	if !q.procMu.TryLock() {
		return ProcessResult{Skipped: true, Reason: "already processing", Remaining: q.PendingCount()}
	}
	defer q.procMu.Unlock()

	var result ProcessResult

	for {
		op := q.nextPending()
		if op == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}

		q.setStatus(op, models.StatusProcessing, "")
		err := q.applier.ApplyOperation(ctx, op)

		switch {
		case err == nil:
			result.Completed++
			q.remove(op.ID)
			logging.Debug("Operation applied", map[string]interface{}{"id": op.ID})

		case errors.IsTransient(err):
			op.RetryCount++
			if op.RetryCount >= q.maxRetries {
				q.setStatus(op, models.StatusFailed, err.Error())
				result.Failed++
				logging.ErrorWithCode("Operation failed permanently",
					string(errors.ErrOperationFailed), err, map[string]interface{}{"id": op.ID})
				continue
			}
			q.setStatus(op, models.StatusPending, err.Error())
			logging.Warn("Operation failed transiently, will retry", map[string]interface{}{
				"id":         op.ID,
				"retryCount": op.RetryCount,
			})
			// Stop the pass: draining past a transiently failed operation
			// would reorder mutations against the same entity.
			result.Remaining = q.PendingCount()
			q.notify()
			return result

		default:
			// Validation or other permanent error: never retried, retained
			// for inspection rather than silently dropped.
			q.setStatus(op, models.StatusFailed, err.Error())
			result.Failed++
			logging.ErrorWithCode("Operation rejected",
				string(errors.CodeOf(err)), err, map[string]interface{}{"id": op.ID})
		}
	}

	result.Remaining = q.PendingCount()
	q.notify()
	return result
}

func (q *Queue) nextPending() *models.Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, op := range q.ops {
		if op.Status == models.StatusPending {
			return op
		}
	}
	return nil
}

func (q *Queue) setStatus(op *models.Operation, status models.OperationStatus, lastErr string) {
	q.mu.Lock()
	op.Status = status
	op.LastError = lastErr
	q.persist()
	q.mu.Unlock()
}

func (q *Queue) remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, op := range q.ops {
		if op.ID == id {
			q.ops = append(q.ops[:i], q.ops[i+1:]...)
			break
		}
	}
	q.persist()
}

// PendingCount returns the number of operations awaiting apply.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, op := range q.ops {
		if op.Status == models.StatusPending {
			n++
		}
	}
	return n
}

// Len returns the total queue length including failed entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// List returns a copy of every queued operation, oldest first.
func (q *Queue) List() []models.Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.Operation, len(q.ops))
	for i, op := range q.ops {
		out[i] = *op
	}
	return out
}

// Stats returns counts by status.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := Stats{Total: len(q.ops)}
	for _, op := range q.ops {
		switch op.Status {
		case models.StatusPending:
			s.Pending++
		case models.StatusProcessing:
			s.Processing++
		case models.StatusFailed:
			s.Failed++
		}
	}
	return s
}

// ClearFailed drops permanently failed operations after an operator has
// inspected them.
func (q *Queue) ClearFailed() int {
	q.mu.Lock()
	kept := q.ops[:0]
	removed := 0
	for _, op := range q.ops {
		if op.Status == models.StatusFailed {
			removed++
			continue
		}
		kept = append(kept, op)
	}
	q.ops = kept
	q.persist()
	q.mu.Unlock()

	if removed > 0 {
		logging.Info("Cleared failed operations", map[string]interface{}{"removed": removed})
		q.notify()
	}
	return removed
}

// RetryFailed resets failed operations to pending with a fresh retry budget.
func (q *Queue) RetryFailed() int {
	q.mu.Lock()
	reset := 0
	for _, op := range q.ops {
		if op.Status == models.StatusFailed {
			op.Status = models.StatusPending
			op.RetryCount = 0
			op.LastError = ""
			reset++
		}
	}
	if reset > 0 {
		q.persist()
	}
	q.mu.Unlock()

	if reset > 0 {
		logging.Info("Reset failed operations for retry", map[string]interface{}{"reset": reset})
		q.notify()
	}
	return reset
}
