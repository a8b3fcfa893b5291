// Package epoch implements the centralized epoch manager (C2) and its
// retirement queue (C3): the temporal fences that let index traversals
// run concurrently with structural mutation without tearing, and the
// mechanism that frees retired memory only once no transaction could
// still observe it.
//
// This is the centralized epoch-manager design, kept as the
// authoritative one (the source's "localized" variant is not carried
// over — see DESIGN.md).
package epoch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// epochTracer follows internal/storage/dolt/store.go's package-level
// otel.Tracer(name) pattern: calls here are free until a caller installs a
// real tracer provider (see internal/telemetry), matching the global
// delegating tracer every span call in this repo goes through.
var epochTracer = otel.Tracer("github.com/latchdb/latchdb/internal/epoch")

// Manager is the single process-wide epoch manager. It is explicitly
// constructed and owned (see internal/engine)
// rather than reached through a package-level singleton.
type Manager struct {
	cfg    Config
	logger *slog.Logger
	inst   *instrumentation

	ring []Record

	currentEpoch atomic.Uint64
	queueTail    atomic.Uint64
	reclaimTail  atomic.Uint64

	queueToken   atomic.Bool
	reclaimToken atomic.Bool

	maxCidRO atomic.Uint64
	maxCidGC atomic.Uint64

	running atomic.Bool

	retireQ *RetirementQueue

	reconfig chan time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewManager constructs an epoch manager with the given config. logger and
// meter may be nil (a discard logger / noop meter are substituted): every
// constructor here takes an explicit *slog.Logger rather than reaching for
// a package-level logger.
func NewManager(cfg Config, logger *slog.Logger, meter metric.Meter) (*Manager, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	inst, err := newInstrumentation(meter)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:      cfg,
		logger:   logger,
		inst:     inst,
		ring:     make([]Record, cfg.RingSize),
		reconfig: make(chan time.Duration, 1),
		stop:     make(chan struct{}),
	}
	if err := m.registerGauges(meter); err != nil {
		return nil, err
	}
	m.retireQ = NewRetirementQueue(m, logger.With("component", "retirement_queue"))
	m.running.Store(true)
	return m, nil
}

func (m *Manager) ringIndex(e uint64) uint64 { return e % uint64(len(m.ring)) }

// EnterEpoch implements C2's enter_epoch: wait-free join of current_epoch
// as a read-write transaction.
func (m *Manager) EnterEpoch(beginCID uint64) (uint64, error) {
	if !m.running.Load() {
		return 0, ErrShutdown
	}
	e := m.currentEpoch.Load()
	rec := &m.ring[m.ringIndex(e)]
	rec.RWCount.Add(1)
	atomicMaxUint64(&rec.MaxCID, beginCID)
	return e, nil
}

// ExitEpoch implements C2's exit_epoch. It returns ErrUnknownEpoch if
// epochID's ring slot has no live RW reference to release, which catches a
// double exit or an exit with no matching EnterEpoch.
func (m *Manager) ExitEpoch(epochID uint64) error {
	rec := &m.ring[m.ringIndex(epochID)]
	for {
		cur := rec.RWCount.Load()
		if cur <= 0 {
			return ErrUnknownEpoch
		}
		if rec.RWCount.CompareAndSwap(cur, cur-1) {
			return nil
		}
	}
}

// EnterReadOnly implements C2's enter_read_only: joins queue_tail instead
// of current_epoch, so a read-only transaction observes committed state as
// of the moment queue_tail was sampled.
func (m *Manager) EnterReadOnly(beginCID uint64) (uint64, error) {
	if !m.running.Load() {
		return 0, ErrShutdown
	}
	e := m.queueTail.Load()
	rec := &m.ring[m.ringIndex(e)]
	rec.ROCount.Add(1)
	atomicMaxUint64(&rec.MaxCID, beginCID)
	return e, nil
}

// ExitReadOnly implements C2's exit_read_only. Same ErrUnknownEpoch guard
// as ExitEpoch, against ro_ref_count instead of rw_ref_count.
func (m *Manager) ExitReadOnly(epochID uint64) error {
	rec := &m.ring[m.ringIndex(epochID)]
	for {
		cur := rec.ROCount.Load()
		if cur <= 0 {
			return ErrUnknownEpoch
		}
		if rec.ROCount.CompareAndSwap(cur, cur-1) {
			return nil
		}
	}
}

// MaxCommittedCID implements C2's max_committed_cid: advances both tails,
// then returns the GC watermark.
func (m *Manager) MaxCommittedCID() uint64 {
	m.advanceQueueTail()
	m.advanceReclaimTail()
	return m.maxCidGC.Load()
}

// ReadOnlyCID implements C2's read_only_cid: advances queue_tail, returns
// the read-only watermark.
func (m *Manager) ReadOnlyCID() uint64 {
	m.advanceQueueTail()
	return m.maxCidRO.Load()
}

// CurrentEpoch, QueueTail, ReclaimTail expose the manager's atomics
// read-only, for tests and introspection (cmd/enginectl inspect epoch).
func (m *Manager) CurrentEpoch() uint64 { return m.currentEpoch.Load() }
func (m *Manager) QueueTail() uint64    { return m.queueTail.Load() }
func (m *Manager) ReclaimTail() uint64  { return m.reclaimTail.Load() }

// Retire hands ptr's cleanup to the manager's retirement queue.
// The closure form replaces the source's (free_fn, ptr) pair.
func (m *Manager) Retire(free func()) {
	m.retireQ.Retire(free)
	m.inst.retiredCount.Add(context.Background(), 1)
}

// RetirementQueue returns the manager's default retirement queue, for
// index variants that choose to share it rather than own a private one.
func (m *Manager) RetirementQueue() *RetirementQueue { return m.retireQ }

// DrainRetirements opportunistically frees any retired entries whose
// retire_epoch is now below reclaim_tail. Safe to call from any thread at
// any time — Drain never holds the advance token.
func (m *Manager) DrainRetirements() int {
	n := m.retireQ.Drain()
	if n > 0 {
		m.inst.freedCount.Add(context.Background(), int64(n))
	}
	return n
}

// advanceQueueTail is half of the advance protocol: a single
// cooperative-exclusive token guards the advance; a losing thread simply
// returns, trusting another thread (or the ticker) to make progress.
func (m *Manager) advanceQueueTail() {
	if !m.queueToken.CompareAndSwap(false, true) {
		m.inst.advanceWaitBail.Add(context.Background(), 1)
		return
	}
	defer m.queueToken.Store(false)

	current := m.currentEpoch.Load()
	tail := m.queueTail.Load()
	for tail+m.cfg.SafetyInterval < current {
		rec := &m.ring[m.ringIndex(tail)]
		if rec.RWCount.Load() != 0 {
			break
		}
		atomicMaxUint64(&m.maxCidRO, rec.MaxCID.Load())
		tail++
	}
	m.queueTail.Store(tail)
}

// advanceReclaimTail is the other half: it chases queue_tail the same way
// queue_tail chases current_epoch, gated on ro_ref_count instead of
// rw_ref_count, and feeds max_cid_gc instead of max_cid_ro.
func (m *Manager) advanceReclaimTail() {
	if !m.reclaimToken.CompareAndSwap(false, true) {
		m.inst.advanceWaitBail.Add(context.Background(), 1)
		return
	}
	defer m.reclaimToken.Store(false)

	ceiling := m.queueTail.Load()
	tail := m.reclaimTail.Load()
	for tail+m.cfg.SafetyInterval < ceiling {
		rec := &m.ring[m.ringIndex(tail)]
		if rec.ROCount.Load() != 0 {
			break
		}
		atomicMaxUint64(&m.maxCidGC, rec.MaxCID.Load())
		tail++
	}
	m.reclaimTail.Store(tail)
}

// tick is the ticker's per-interval body: initialize the next
// ring slot, advance current_epoch, then advance both tails and drain
// whatever retirements that newly permits.
func (m *Manager) tick() {
	ctx, span := epochTracer.Start(context.Background(), "epoch.tick", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	n := uint64(len(m.ring))
	cur := m.currentEpoch.Load()
	next := cur + 1

	overflowed := next-m.reclaimTail.Load() >= n
	if overflowed {
		// Ring overflow: reclaim_tail hasn't kept pace with current_epoch
		// across a full lap of the ring. Force both tails forward by one
		// so the ticker can make progress; this holds retired memory a
		// little longer but keeps the system from deadlocking under
		// steady reader pressure.
		m.queueTail.Add(1)
		m.reclaimTail.Add(1)
		m.inst.overflowCount.Add(ctx, 1)
		m.logger.Warn("epoch ring overflow; force-advancing tails",
			"current_epoch", cur, "reclaim_tail", m.reclaimTail.Load())
	}

	m.ring[next%n].reset()
	m.currentEpoch.Store(next)
	m.inst.tickCount.Add(ctx, 1)
	span.SetAttributes(
		attribute.Int64("epoch.current_epoch", int64(next)),
		attribute.Bool("epoch.ring_overflow", overflowed),
	)

	m.advanceQueueTail()
	m.advanceReclaimTail()
	m.DrainRetirements()
}

// Tick runs one ticker interval synchronously. Exposed so tests can drive
// the advance protocol deterministically instead of racing a real timer,
// and so Start's goroutine can share the same code path.
func (m *Manager) Tick() { m.tick() }

// SetTickInterval changes the ticker's interval while Start's goroutine is
// running, without restarting the manager. reconfig is buffered by one, so
// a reload that arrives while a prior one is still unconsumed replaces it
// rather than blocking the caller (engineconfig.Watcher's debounce timer).
func (m *Manager) SetTickInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	for {
		select {
		case m.reconfig <- d:
			return
		default:
		}
		select {
		case <-m.reconfig:
		default:
		}
	}
}

// Start launches the dedicated ticker goroutine. It uses errgroup so a
// panic or unexpected error in the ticker is observable through Wait
// rather than silently killing the
// goroutine — the epoch ticker has no user-visible error path today, but
// this follows the same supervised-goroutine shape the rest of the repo's
// background work uses.
func (m *Manager) Start(ctx context.Context) *errgroup.Group {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(m.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return nil
			case <-ctx.Done():
				return nil
			case d := <-m.reconfig:
				m.cfg.TickInterval = d
				ticker.Reset(d)
			case <-ticker.C:
				if !m.running.Load() {
					return nil
				}
				m.tick()
			}
		}
	})
	return g
}

// Shutdown stops the ticker and forbids further EnterEpoch/EnterReadOnly
// calls. Callers must quiesce all worker threads first; the
// ticker's own shutdown check is cooperative (it checks is_running before
// each sleep, not mid-tick).
func (m *Manager) Shutdown() {
	if !m.running.CompareAndSwap(true, false) {
		return
	}
	close(m.stop)
}
