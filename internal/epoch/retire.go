package epoch

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// RetiredEntry is one pending cleanup. The
// source's (free_fn, ptr) pair is represented as a single closure — the
// idiomatic Go shape for "a function plus the thing it closes over"
//.
type RetiredEntry struct {
	RetireEpoch uint64
	Free        func()
}

// RetirementQueue is C3: a bounded-in-practice FIFO of retired entries,
// drained once reclaim_tail advances past an entry's retire epoch. Indexes
// may share the manager's default queue or construct their own.
//
// Implemented as a mutex-guarded slice rather than a lock-free MPSC ring:
// retire() and Drain() are off the hot traversal path (structural
// unlinking happens rarely relative to reads), so the simpler, clearly
// correct implementation is preferred here over a bespoke lock-free queue:
// only index traversal and the tail advance are required to be lock-free,
// per I5/I6.
type RetirementQueue struct {
	mgr    *Manager
	logger *slog.Logger

	mu       sync.Mutex
	entries  []RetiredEntry
	draining atomic.Bool
}

// NewRetirementQueue constructs a retirement queue that reads its
// reclaim_tail watermark from mgr. Passing a different Manager than the one
// driving the caller's enter/exit epoch calls is a programming error.
func NewRetirementQueue(mgr *Manager, logger *slog.Logger) *RetirementQueue {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RetirementQueue{mgr: mgr, logger: logger}
}

// Retire records the current queue_tail as the entry's retire epoch and
// enqueues it. free will not run until no thread holds an epoch id at or
// below this retire epoch (Drain waits for reclaim_tail to pass it).
func (q *RetirementQueue) Retire(free func()) {
	epoch := q.mgr.queueTail.Load()
	q.mu.Lock()
	q.entries = append(q.entries, RetiredEntry{RetireEpoch: epoch, Free: free})
	q.mu.Unlock()
}

// Drain pops the prefix of entries whose retire epoch is now below
// reclaim_tail and calls their Free functions. It is idempotent, safe to
// call from any thread holding no epoch and no advance token, and safe to
// call concurrently with itself (a concurrent call simply does nothing and
// returns 0 via the draining flag).
func (q *RetirementQueue) Drain() int {
	if !q.draining.CompareAndSwap(false, true) {
		return 0
	}
	defer q.draining.Store(false)

	reclaimTail := q.mgr.reclaimTail.Load()

	q.mu.Lock()
	i := 0
	for i < len(q.entries) && q.entries[i].RetireEpoch < reclaimTail {
		i++
	}
	freed := append([]RetiredEntry(nil), q.entries[:i]...)
	q.entries = q.entries[i:]
	q.mu.Unlock()

	for _, e := range freed {
		e.Free()
	}
	if len(freed) > 0 {
		q.logger.Debug("drained retirement queue", "freed", len(freed), "reclaim_tail", reclaimTail)
	}
	return len(freed)
}

// Pending returns the number of entries still awaiting reclamation, for
// metrics and tests.
func (q *RetirementQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
