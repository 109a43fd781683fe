// Package redo implements the parallel redo engine external
// collaborator (component C): a fixed-size worker pool that executes
// redo jobs concurrently while preserving strict per-page FIFO order and
// exposing a minimum-unfinished-LSN watermark to external waiters.
package redo

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Greenminalee/cubrid/internal/logrecord"
	"github.com/Greenminalee/cubrid/pkg/types"
	"github.com/Greenminalee/cubrid/pkg/verrors"
)

// SystemTransactionIndex names the synthetic transaction under which
// worker-applied redo executes.
const SystemTransactionIndex types.TransactionID = -1

type queuedJob struct {
	id  uint64
	job Job
}

// Engine is a fixed-size worker pool partitioned by target PID, plus a
// dedicated lane for sentinel-keyed jobs that must participate in global
// ordering. Construct with New, then Start before the first Add.
type Engine struct {
	cfg       Config
	logger    *zap.Logger
	newReader func() *logrecord.Reader

	wm *watermark

	pageQueues    []chan queuedJob
	sentinelQueue chan queuedJob

	nextJobID      atomic.Uint64
	addingFinished atomic.Bool

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New constructs an Engine with cfg.WorkerCount page partitions plus one
// sentinel lane. newReader is called once per worker goroutine to give
// each its own, unshared logrecord.Reader.
func New(logger *zap.Logger, newReader func() *logrecord.Reader, opts ...Option) (*Engine, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cfg:           cfg,
		logger:        logger,
		newReader:     newReader,
		wm:            newWatermark(),
		pageQueues:    make([]chan queuedJob, cfg.WorkerCount),
		sentinelQueue: make(chan queuedJob, cfg.QueueDepth),
	}
	for i := range e.pageQueues {
		e.pageQueues[i] = make(chan queuedJob, cfg.QueueDepth)
	}
	return e, nil
}

// Start launches the worker pool. It must be called exactly once before
// any call to Add.
func (e *Engine) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	group, gctx := errgroup.WithContext(ctx)
	for _, q := range e.pageQueues {
		q := q
		group.Go(func() error {
			return e.runWorker(gctx, q)
		})
	}
	sentinelQueue := e.sentinelQueue
	group.Go(func() error {
		return e.runWorker(gctx, sentinelQueue)
	})
	e.group = group
}

// runWorker drains queue until ctx is canceled or a job fails. A job
// failure is fatal to the whole pool: it is returned so errgroup cancels
// every sibling worker's context, matching the severity of a
// synchronous-mode dispatch failure (which halts the driver outright
// rather than skipping the record and continuing).
func (e *Engine) runWorker(ctx context.Context, queue chan queuedJob) error {
	wctx := &WorkerContext{
		Reader:           e.newReader(),
		UndoScratch:      make([]byte, e.cfg.ScratchSize()),
		RedoScratch:      make([]byte, e.cfg.ScratchSize()),
		TransactionIndex: SystemTransactionIndex,
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case qj, ok := <-queue:
			if !ok {
				return nil
			}
			wctx.Ctx = ctx
			err := qj.job.Execute(wctx)
			e.wm.removeInflight(qj.id)
			if err != nil {
				e.logger.Error("redo job failed", zap.Stringer("key", qj.job.Key()), zap.Error(err))
				e.wm.markFailed()
				if e.cfg.OnJobError != nil {
					e.cfg.OnJobError(err)
				}
				return err
			}
		}
	}
}

func (e *Engine) partitionFor(pid types.PID) int {
	n := len(e.pageQueues)
	h := int64(pid.VolumeID)*1000003 + int64(pid.PageNumber)
	idx := h % int64(n)
	if idx < 0 {
		idx += int64(n)
	}
	return int(idx)
}

// Add enqueues job. It must not be called after SetAddingFinished.
func (e *Engine) Add(job Job) error {
	if e.addingFinished.Load() {
		return verrors.ErrClosed
	}
	id := e.nextJobID.Add(1)
	e.wm.addInflight(id, job.LSN())
	qj := queuedJob{id: id, job: job}

	key := job.Key()
	if key.Kind == KeySentinel {
		e.sentinelQueue <- qj
		return nil
	}
	idx := e.partitionFor(key.PID)
	e.pageQueues[idx] <- qj
	return nil
}

// SetAddingFinished latches "no more input".
func (e *Engine) SetAddingFinished() {
	e.addingFinished.Store(true)
}

// WaitForIdle blocks until every enqueued job has completed, or until a
// job failure means the remaining queued jobs never will. Safe to call
// repeatedly.
func (e *Engine) WaitForIdle() error {
	e.wm.waitIdle()
	if e.wm.isFailed() {
		return verrors.ErrJobFailed
	}
	return nil
}

// WaitForTerminationAndStopExecution waits for drain after
// SetAddingFinished, then stops the worker pool. It returns the first
// job execution error encountered by any worker, if one occurred, so a
// caller that tore the engine down during an otherwise-clean shutdown
// can still learn that a record was dropped rather than applied.
func (e *Engine) WaitForTerminationAndStopExecution() error {
	e.wm.waitIdle()
	e.wm.close()
	if e.cancel != nil {
		e.cancel()
	}
	if e.group != nil {
		return e.group.Wait()
	}
	return nil
}

// PublishOuterBound records the driver's current replay_lsn as the
// watermark's outer upper bound.
func (e *Engine) PublishOuterBound(lsn types.LSN) {
	e.wm.publishOuterBound(lsn)
}

// MinimumLogLSN returns the engine's outer watermark without blocking.
func (e *Engine) MinimumLogLSN() types.LSN {
	return e.wm.minimum()
}

// WaitPastTargetLSN blocks until MinimumLogLSN strictly exceeds target.
func (e *Engine) WaitPastTargetLSN(target types.LSN) error {
	return e.wm.waitPast(target)
}
