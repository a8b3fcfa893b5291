package epoch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := Config{RingSize: 16, SafetyInterval: 2}
	m, err := NewManager(cfg, nil, nil)
	require.NoError(t, err)
	return m
}

func TestInvariant_TailOrdering(t *testing.T) {
	m := newTestManager(t)
	for i := 0; i < 50; i++ {
		m.Tick()
		require.LessOrEqual(t, m.ReclaimTail(), m.QueueTail())
		require.LessOrEqual(t, m.QueueTail(), m.CurrentEpoch())
	}
}

func TestEnterExitEpoch_RefCounting(t *testing.T) {
	m := newTestManager(t)
	e1, err := m.EnterEpoch(10)
	require.NoError(t, err)
	require.Equal(t, m.CurrentEpoch(), e1)

	rec := &m.ring[m.ringIndex(e1)]
	require.Equal(t, int32(1), rec.RWCount.Load())

	m.ExitEpoch(e1)
	require.Equal(t, int32(0), rec.RWCount.Load())
}

func TestExitEpoch_UnknownEpoch(t *testing.T) {
	m := newTestManager(t)

	e, err := m.EnterEpoch(1)
	require.NoError(t, err)

	require.NoError(t, m.ExitEpoch(e))
	require.ErrorIs(t, m.ExitEpoch(e), ErrUnknownEpoch, "a second exit of the same epoch has nothing left to release")

	require.ErrorIs(t, m.ExitEpoch(e+1), ErrUnknownEpoch, "exiting an epoch never entered has nothing to release")

	ro, err := m.EnterReadOnly(1)
	require.NoError(t, err)
	require.NoError(t, m.ExitReadOnly(ro))
	require.ErrorIs(t, m.ExitReadOnly(ro), ErrUnknownEpoch)
}

func TestAdvanceQueueTail_BlockedByLiveRW(t *testing.T) {
	m := newTestManager(t)

	e, err := m.EnterEpoch(1)
	require.NoError(t, err)

	// Advance current_epoch well past e without exiting; queue_tail must
	// not pass e while its rw_ref_count is nonzero.
	for i := 0; i < 10; i++ {
		m.Tick()
	}
	require.LessOrEqual(t, m.QueueTail(), e)

	m.ExitEpoch(e)
	for i := 0; i < 5; i++ {
		m.Tick()
	}
	require.Greater(t, m.QueueTail(), e)
}

func TestRetirementHeldWhileEpochLive(t *testing.T) {
	// Thread A enters an epoch; thread B retires a
	// node; while A is still in its epoch, advancing the ticker must not
	// free the retired node. After A exits and the ticker advances again,
	// it must be freed.
	m := newTestManager(t)

	epochA, err := m.EnterEpoch(1)
	require.NoError(t, err)

	var freed atomic32
	m.Retire(func() { freed.set(1) })

	m.Tick()
	m.Tick()
	require.EqualValues(t, 0, freed.get(), "retired node freed while a holder epoch is still live")

	m.ExitEpoch(epochA)
	for i := 0; i < 10; i++ {
		m.Tick()
	}
	require.EqualValues(t, 1, freed.get(), "retired node was never freed after its holder exited")
}

func TestRingOverflow_TailsCatchUpToSafetyInterval(t *testing.T) {
	// Scenario 6: force the ticker to advance far beyond ring_size with no
	// readers; queue_tail must end at current_epoch - safety_interval and
	// reclaim_tail a further safety_interval behind queue_tail.
	m := newTestManager(t)
	for i := 0; i < 200; i++ {
		m.Tick()
	}
	require.Greater(t, m.CurrentEpoch(), uint64(len(m.ring)))
	require.Equal(t, m.CurrentEpoch()-m.cfg.SafetyInterval, m.QueueTail())
	require.Equal(t, m.QueueTail()-m.cfg.SafetyInterval, m.ReclaimTail())
}

func TestEnterEpoch_AfterShutdown(t *testing.T) {
	m := newTestManager(t)
	m.Shutdown()
	_, err := m.EnterEpoch(1)
	require.ErrorIs(t, err, ErrShutdown)
	_, err = m.EnterReadOnly(1)
	require.ErrorIs(t, err, ErrShutdown)
}

func TestConcurrentEnterExit_NoTornCounts(t *testing.T) {
	m := newTestManager(t)
	const goroutines = 32
	const iterations = 200

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				e, err := m.EnterEpoch(uint64(i))
				if err != nil {
					return
				}
				m.ExitEpoch(e)
			}
		}()
	}

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				m.Tick()
			}
		}
	}()

	wg.Wait()
	close(stop)

	for i := range m.ring {
		require.Zero(t, m.ring[i].RWCount.Load(), "ring slot %d leaked a ref count", i)
	}
}

// atomic32 is a tiny test helper avoiding an import of sync/atomic's typed
// Int32 just for one flag in the table above (kept local to the test file).
type atomic32 struct {
	mu sync.Mutex
	v  int
}

func (a *atomic32) set(v int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.v = v
}

func (a *atomic32) get() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.v
}
