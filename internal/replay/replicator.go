// Package replay implements the replay driver and the wait interface
// (components D and E): the long-lived background activity that reads
// the log forward from a starting LSN, classifies and applies records,
// and the condition-variable-based synchronization that lets readers
// block until replay has passed a given target LSN.
package replay

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Greenminalee/cubrid/internal/logrecord"
	"github.com/Greenminalee/cubrid/internal/pagebuffer"
	"github.com/Greenminalee/cubrid/internal/recovery"
	"github.com/Greenminalee/cubrid/internal/redo"
	"github.com/Greenminalee/cubrid/pkg/telemetry"
	"github.com/Greenminalee/cubrid/pkg/types"
	"github.com/Greenminalee/cubrid/pkg/util/runner"
)

// pollInterval is how long the driver sleeps when it has caught up to
// the write-frontier, to avoid spinning.
const pollInterval = time.Millisecond

// Deps are the external collaborators the replicator is wired to.
// Frontier, NewReader, PageBuffer and Table are required; BtreeUpdater,
// Sink, Logger, FatalReporter and NowMS default when nil.
type Deps struct {
	Frontier      logrecord.Frontier
	NewReader     func() *logrecord.Reader
	PageBuffer    *pagebuffer.Buffer
	Table         *recovery.Table
	BtreeUpdater  recovery.BtreeRootStatsUpdater
	Sink          telemetry.Sink
	Logger        *zap.Logger
	FatalReporter FatalReporter
	NowMS         func() int64
}

func nowMS() int64 { return time.Now().UnixMilli() }

// Replicator is the log replication core: the replay driver plus (in
// parallel mode) the redo engine it drives, and the wait interface
// layered over both.
type Replicator struct {
	deps Deps
	cfg  Config

	mu        sync.Mutex
	cond      *sync.Cond
	replayLSN types.LSN
	closed    bool

	reader *logrecord.Reader
	engine *redo.Engine

	mvccNextID mvccCounter

	runner *runner.Runner
}

// New constructs a Replicator and immediately starts its background
// driver, replaying forward from startLSN.
func New(startLSN types.LSN, deps Deps, opts ...Option) (*Replicator, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Sink == nil {
		deps.Sink = telemetry.NewNop()
	}
	if deps.BtreeUpdater == nil {
		deps.BtreeUpdater = recovery.NewDefaultBtreeRootStatsUpdater()
	}
	if deps.FatalReporter == nil {
		deps.FatalReporter = NewLoggingFatalReporter(deps.Logger)
	}
	if deps.NowMS == nil {
		deps.NowMS = nowMS
	}

	r := &Replicator{
		deps:      deps,
		cfg:       cfg,
		replayLSN: startLSN,
		reader:    deps.NewReader(),
	}
	r.cond = sync.NewCond(&r.mu)

	if cfg.ParallelCount > 0 {
		engine, err := redo.New(deps.Logger.Named("redo"), deps.NewReader,
			redo.WithWorkerCount(cfg.ParallelCount),
			redo.WithOnJobError(func(jobErr error) {
				deps.FatalReporter.Fatal(context.Background(), "redo job failed, parallel pool stopping", zap.Error(jobErr))
			}),
		)
		if err != nil {
			return nil, err
		}
		engine.Start()
		engine.PublishOuterBound(startLSN)
		r.engine = engine
	}

	r.runner = runner.New("replicator", deps.Logger.Named("replay"))
	if _, err := r.runner.Run(r.loop); err != nil {
		return nil, err
	}
	return r, nil
}

// Config returns the replicator's effective configuration.
func (r *Replicator) Config() Config {
	return r.cfg
}

// loop is the driver's main loop: while active, read the write-frontier
// and either redo up to it or sleep a fixed small interval.
func (r *Replicator) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frontier := r.deps.Frontier()
		r.mu.Lock()
		cur := r.replayLSN
		r.mu.Unlock()

		if cur < frontier {
			if err := r.redoUpTo(ctx, frontier); err != nil {
				r.deps.Logger.Error("redo step failed, driver stopping", zap.Error(err))
				return
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(pollInterval):
		}
	}
}

// redoUpTo is the replay step: seek with force set on the first record
// of the call, then repeatedly read, classify, and apply/dispatch records
// until replayLSN reaches end.
func (r *Replicator) redoUpTo(ctx context.Context, end types.LSN) error {
	r.mu.Lock()
	cur := r.replayLSN
	r.mu.Unlock()

	stopTimer := r.deps.Sink.Start()
	defer stopTimer()

	forced := true
	for cur < end {
		if err := r.reader.SeekAndFetch(cur, forced); err != nil {
			r.deps.FatalReporter.Fatal(ctx, "log decode failure", zap.Error(err), zap.Stringer("lsn", cur))
			return err
		}
		forced = false

		rec, err := r.reader.ReadRecord()
		if err != nil {
			r.deps.FatalReporter.Fatal(ctx, "log decode failure", zap.Error(err), zap.Stringer("lsn", cur))
			return err
		}

		if err := r.dispatch(ctx, rec); err != nil {
			return err
		}

		next := rec.Header.ForwardLSN
		r.advanceReplayLSN(next)
		cur = next
	}
	return nil
}

// advanceReplayLSN sets replayLSN to next (I1/I2), publishes the new
// bound to the parallel engine's watermark while still holding
// replayMutex, then broadcasts replayCondvar.
func (r *Replicator) advanceReplayLSN(next types.LSN) {
	r.mu.Lock()
	assertInvariant(r.deps.Logger, next >= r.replayLSN, "replay LSN regression",
		zap.Stringer("current", r.replayLSN), zap.Stringer("next", next))
	if next > r.replayLSN {
		r.replayLSN = next
	}
	if r.engine != nil {
		r.engine.PublishOuterBound(r.replayLSN)
	}
	r.mu.Unlock()
	r.cond.Broadcast()
}

// ReplayLSN returns the current replay position.
func (r *Replicator) ReplayLSN() types.LSN {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.replayLSN
}

// Close tears the replicator down: stops the driver daemon, then (in
// parallel mode) drains and stops the redo engine, matching the
// lifecycle order of driver-first, engine-second.
func (r *Replicator) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.runner.Stop()
	r.cond.Broadcast()

	if r.engine != nil {
		r.engine.SetAddingFinished()
		return r.engine.WaitForTerminationAndStopExecution()
	}
	return nil
}
