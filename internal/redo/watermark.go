package redo

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v2"

	"github.com/Greenminalee/cubrid/pkg/types"
	"github.com/Greenminalee/cubrid/pkg/verrors"
)

// watermark tracks the engine's outer bound: min(oldest in-flight job's
// LSN, outer upper bound last published by the driver). Many goroutines
// poll this value (every blocked waiter re-checks it on every wakeup),
// while mutation happens once per job add/finish and once per driver
// advance — the read-mostly/write-rare shape xsync.RBMutex is built for.
// Because RBMutex implements sync.Locker via its exclusive Lock/Unlock,
// it doubles as the Locker behind the blocking condition variable: a
// waiter's Wait() takes the exclusive path, a non-blocking poll takes
// the cheap concurrent RLock path.
type watermark struct {
	rb    *xsync.RBMutex
	cond  *sync.Cond
	state wmState

	closed bool
	failed bool
}

type wmState struct {
	inflight   map[uint64]types.LSN
	outerBound types.LSN
}

func newWatermark() *watermark {
	w := &watermark{
		rb:    xsync.NewRBMutex(),
		state: wmState{inflight: make(map[uint64]types.LSN)},
	}
	w.cond = sync.NewCond(w.rb)
	return w
}

func (w *watermark) recomputeLocked() types.LSN {
	min := w.state.outerBound
	for _, lsn := range w.state.inflight {
		if lsn < min {
			min = lsn
		}
	}
	return min
}

func (w *watermark) addInflight(id uint64, lsn types.LSN) {
	w.rb.Lock()
	w.state.inflight[id] = lsn
	w.rb.Unlock()
}

func (w *watermark) removeInflight(id uint64) {
	w.rb.Lock()
	delete(w.state.inflight, id)
	w.rb.Unlock()
	w.cond.Broadcast()
}

// publishOuterBound records the driver's most recently advanced
// replay_lsn as the watermark's outer upper bound. It never regresses.
func (w *watermark) publishOuterBound(lsn types.LSN) {
	w.rb.Lock()
	if lsn > w.state.outerBound {
		w.state.outerBound = lsn
	}
	w.rb.Unlock()
	w.cond.Broadcast()
}

// minimum returns the current outer watermark without blocking.
func (w *watermark) minimum() types.LSN {
	t := w.rb.RLock()
	defer w.rb.RUnlock(t)
	return w.recomputeLocked()
}

// waitPast blocks until the watermark strictly exceeds target, or until
// close is called, or until a job failure dooms the watermark to never
// reach target.
func (w *watermark) waitPast(target types.LSN) error {
	w.rb.Lock()
	defer w.rb.Unlock()
	for w.recomputeLocked() <= target {
		if w.closed {
			return verrors.ErrShutdown
		}
		if w.failed {
			return verrors.ErrJobFailed
		}
		w.cond.Wait()
	}
	return nil
}

// waitIdle blocks until no job is in flight, or until a job failure
// means the jobs still queued behind it will never run and so can never
// drain to zero on their own.
func (w *watermark) waitIdle() {
	w.rb.Lock()
	defer w.rb.Unlock()
	for len(w.state.inflight) > 0 && !w.failed {
		w.cond.Wait()
	}
}

func (w *watermark) close() {
	w.rb.Lock()
	w.closed = true
	w.rb.Unlock()
	w.cond.Broadcast()
}

// isFailed reports whether a worker's job execution has failed.
func (w *watermark) isFailed() bool {
	t := w.rb.RLock()
	defer w.rb.RUnlock(t)
	return w.failed
}

// markFailed records that a worker's job execution has failed, waking
// every blocked waiter so shutdown doesn't hang on jobs still sitting in
// a queue that no worker will ever drain again.
func (w *watermark) markFailed() {
	w.rb.Lock()
	w.failed = true
	w.rb.Unlock()
	w.cond.Broadcast()
}
