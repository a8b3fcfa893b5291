package epoch

import "sync/atomic"

// Record is one slot in the epoch ring: the reference counts and
// watermark for transactions that entered a single epoch.
type Record struct {
	ROCount atomic.Int32
	RWCount atomic.Int32
	MaxCID  atomic.Uint64
}

// reset zeroes the record for reuse by a newly-minted epoch. Only the
// ticker goroutine calls this, and only for a ring slot it has just
// confirmed is safely vacated (reclaim_tail has moved past it).
func (r *Record) reset() {
	r.ROCount.Store(0)
	r.RWCount.Store(0)
	r.MaxCID.Store(0)
}

// atomicMaxUint64 performs a lock-free max-update: *a = max(*a, v).
func atomicMaxUint64(a *atomic.Uint64, v uint64) {
	for {
		old := a.Load()
		if v <= old {
			return
		}
		if a.CompareAndSwap(old, v) {
			return
		}
	}
}
