package replay

import (
	"github.com/Greenminalee/cubrid/pkg/types"
	"github.com/Greenminalee/cubrid/pkg/verrors"
)

// WaitPastTargetLSN blocks until all effects of records with LSN ≤
// target are visible. In synchronous mode it waits directly on
// replayLSN; in parallel mode it delegates to the redo engine's
// watermark, which is the accurate bound because a higher replayLSN
// only proves a record was classified, not that its deferred job
// completed.
func (r *Replicator) WaitPastTargetLSN(target types.LSN) error {
	if r.engine != nil {
		return r.engine.WaitPastTargetLSN(target)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.replayLSN <= target {
		if r.closed {
			return verrors.ErrClosed
		}
		r.cond.Wait()
	}
	return nil
}

// WaitReplicationFinishDuringShutdown blocks until replayLSN has caught
// up to the write-frontier and, in parallel mode, the redo engine is
// idle. It does not stop the driver or destroy the engine — that
// happens in Close, after the daemon has stopped, to preserve symmetry.
func (r *Replicator) WaitReplicationFinishDuringShutdown() error {
	frontier := r.deps.Frontier()
	r.mu.Lock()
	for r.replayLSN < frontier {
		if r.closed {
			r.mu.Unlock()
			return nil
		}
		r.cond.Wait()
	}
	r.mu.Unlock()

	if r.engine != nil {
		return r.engine.WaitForIdle()
	}
	return nil
}
