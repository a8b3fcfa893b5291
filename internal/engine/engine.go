// Package engine wires the epoch manager (C2), the index dispatcher (C6),
// and their configuration into one explicitly constructed, explicitly shut
// down value — no package-level globals or singletons. Callers get an
// *Engine from New and must call Close when done.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/latchdb/latchdb/internal/engineconfig"
	"github.com/latchdb/latchdb/internal/epoch"
	"github.com/latchdb/latchdb/internal/index"
	"github.com/latchdb/latchdb/internal/tuple"
)

// Engine is the process-wide owner of the epoch manager and every live
// index built against it. Index construction and epoch management are
// tightly coupled — every traversal and mutation occurs inside an epoch —
// so Engine is the seam that hands out both together rather than letting
// callers wire an index to the wrong epoch manager by accident.
type Engine struct {
	logger *slog.Logger
	epochs *epoch.Manager

	mu      sync.RWMutex
	indexes map[uint64]index.Index
	rows    tuple.RowSource

	ticker  *errgroup.Group
	watcher *errgroup.Group
	cancel  context.CancelFunc
}

// Options configures a new Engine. Logger and Meter may be left nil; a
// discard logger and a noop meter are substituted, matching the explicit
// nil-means-default convention the epoch package already uses.
type Options struct {
	Epoch  epoch.Config
	Logger *slog.Logger
	Meter  metric.Meter

	// Rows backs the radix index's load_key callback. Nil is
	// valid for workloads that never build a radix_art index.
	Rows tuple.RowSource

	// ConfigPath, when non-empty, starts an engineconfig.Watcher against
	// the file: a write lets the epoch ticker's tick interval be
	// hot-reloaded without restarting the process. Left empty, no watcher
	// runs and Epoch.TickInterval is fixed for the engine's lifetime.
	ConfigPath string
}

// New constructs an Engine and starts its epoch ticker goroutine.
func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	mgr, err := epoch.NewManager(opts.Epoch, opts.Logger.With("component", "epoch"), opts.Meter)
	if err != nil {
		return nil, fmt.Errorf("engine: construct epoch manager: %w", err)
	}

	tickCtx, cancel := context.WithCancel(ctx)
	e := &Engine{
		logger:  opts.Logger,
		epochs:  mgr,
		indexes: make(map[uint64]index.Index),
		rows:    opts.Rows,
		cancel:  cancel,
	}
	e.ticker = mgr.Start(tickCtx)

	if opts.ConfigPath != "" {
		watcher := engineconfig.NewWatcher(opts.ConfigPath, 0, opts.Logger.With("component", "config_watcher"),
			func(cfg engineconfig.Config) { mgr.SetTickInterval(cfg.ToEpochConfig().TickInterval) })
		g, wctx := errgroup.WithContext(tickCtx)
		g.Go(func() error { return watcher.Run(wctx) })
		e.watcher = g
	}
	return e, nil
}

// Epochs returns the engine's epoch manager, for callers that need to
// enter/exit epochs around an operation spanning more than one index call.
func (e *Engine) Epochs() *epoch.Manager { return e.epochs }

// BuildIndex constructs an index variant per meta.Shape and registers it
// under meta.IndexID (C6), wired to this engine's epoch manager as its
// retirer. Building the same IndexID twice replaces the prior entry; the
// caller is responsible for quiescing any in-flight operations against the
// old one first.
func (e *Engine) BuildIndex(meta index.Metadata, codec *tuple.Codec) (index.Index, error) {
	idx, err := index.Build(meta, e.epochs, codec, e.rows)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.indexes[meta.IndexID] = idx
	e.mu.Unlock()
	e.logger.Info("index built", "index_id", meta.IndexID, "shape", meta.Shape)
	return idx, nil
}

// Index looks up a previously built index by id.
func (e *Engine) Index(indexID uint64) (index.Index, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx, ok := e.indexes[indexID]
	return idx, ok
}

// DropIndex removes an index from the registry (C6). It does not itself
// wait for readers to drain; callers must ensure no operation is using
// indexID's index before calling this (normally by going through a
// transaction manager outside this engine's scope).
func (e *Engine) DropIndex(indexID uint64) error {
	e.mu.Lock()
	idx, ok := e.indexes[indexID]
	delete(e.indexes, indexID)
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("engine: no index registered with id %d", indexID)
	}
	return index.Drop(idx)
}

// EnterEpoch and ExitEpoch are thin passthroughs kept on Engine so callers
// that only ever talk to one Engine don't also need to hold a reference to
// its epoch manager.
func (e *Engine) EnterEpoch(beginCID uint64) (uint64, error) { return e.epochs.EnterEpoch(beginCID) }
func (e *Engine) ExitEpoch(epochID uint64) error              { return e.epochs.ExitEpoch(epochID) }

// Close stops the epoch ticker and shuts down the epoch manager. Callers
// must quiesce all worker threads (no in-flight EnterEpoch) before
// calling this.
func (e *Engine) Close() error {
	e.cancel()
	if err := e.ticker.Wait(); err != nil {
		e.logger.Warn("epoch ticker exited with error", "error", err)
	}
	if e.watcher != nil {
		if err := e.watcher.Wait(); err != nil {
			e.logger.Warn("config watcher exited with error", "error", err)
		}
	}
	e.epochs.Shutdown()
	return nil
}
