package epoch

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// instrumentation wraps the otel instruments the epoch manager reports,
// grounded in internal/storage/dolt/access_lock.go's pattern of recording
// a histogram around a polling wait. When constructed with a noop meter
// (the default, see NewManager) every call below is a cheap no-op.
type instrumentation struct {
	tickCount       metric.Int64Counter
	overflowCount   metric.Int64Counter
	retiredCount    metric.Int64Counter
	freedCount      metric.Int64Counter
	advanceWaitBail metric.Int64Counter
}

func newInstrumentation(meter metric.Meter) (*instrumentation, error) {
	if meter == nil {
		meter = noop.Meter{}
	}
	var inst instrumentation
	var err error
	if inst.tickCount, err = meter.Int64Counter("epoch.ticks",
		metric.WithDescription("number of epoch ticker advances")); err != nil {
		return nil, err
	}
	if inst.overflowCount, err = meter.Int64Counter("epoch.ring_overflows",
		metric.WithDescription("number of times the epoch ring was force-advanced to avoid overflow")); err != nil {
		return nil, err
	}
	if inst.retiredCount, err = meter.Int64Counter("epoch.retired",
		metric.WithDescription("number of entries enqueued for retirement")); err != nil {
		return nil, err
	}
	if inst.freedCount, err = meter.Int64Counter("epoch.freed",
		metric.WithDescription("number of retired entries actually freed")); err != nil {
		return nil, err
	}
	if inst.advanceWaitBail, err = meter.Int64Counter("epoch.advance_token_contended",
		metric.WithDescription("number of times a tail advance bailed because the token was held")); err != nil {
		return nil, err
	}
	return &inst, nil
}

// registerGauges wires observable gauges for current_epoch / queue_tail /
// reclaim_tail against the manager's atomics. Called once from NewManager.
func (m *Manager) registerGauges(meter metric.Meter) error {
	if meter == nil {
		meter = noop.Meter{}
	}
	current, err := meter.Int64ObservableGauge("epoch.current",
		metric.WithDescription("current_epoch"))
	if err != nil {
		return err
	}
	queueTail, err := meter.Int64ObservableGauge("epoch.queue_tail",
		metric.WithDescription("queue_tail: oldest epoch that might hold a live RW txn"))
	if err != nil {
		return err
	}
	reclaimTail, err := meter.Int64ObservableGauge("epoch.reclaim_tail",
		metric.WithDescription("reclaim_tail: oldest epoch that might hold a live RO txn"))
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(current, int64(loadUint64(&m.currentEpoch)))
		o.ObserveInt64(queueTail, int64(loadUint64(&m.queueTail)))
		o.ObserveInt64(reclaimTail, int64(loadUint64(&m.reclaimTail)))
		return nil
	}, current, queueTail, reclaimTail)
	return err
}

func loadUint64(a *atomic.Uint64) uint64 { return a.Load() }
