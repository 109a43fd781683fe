package replay

import (
	"context"
	"sync/atomic"

	"github.com/Greenminalee/cubrid/internal/logrecord"
	"github.com/Greenminalee/cubrid/internal/pagebuffer"
	"github.com/Greenminalee/cubrid/internal/recovery"
	"github.com/Greenminalee/cubrid/internal/redo"
	"github.com/Greenminalee/cubrid/pkg/types"
)

// mvccCounter is the global mvcc_next_id watermark, advanced by a
// compare-and-swap loop so a monotone maximum is never lost to a race
// between two concurrent bumps.
type mvccCounter struct {
	v atomic.Uint64
}

func (c *mvccCounter) bump(id types.MVCCID) {
	for {
		cur := c.v.Load()
		if uint64(id) <= cur {
			return
		}
		if c.v.CompareAndSwap(cur, uint64(id)) {
			return
		}
	}
}

// Value returns the current mvcc_next_id.
func (c *mvccCounter) Value() types.MVCCID {
	return types.MVCCID(c.v.Load())
}

// MVCCNextID returns the replicator's current global mvcc_next_id.
func (r *Replicator) MVCCNextID() types.MVCCID {
	return r.mvccNextID.Value()
}

// genericRedo is the generic redo path (§4.4): advance mvcc_next_id if
// applicable, then either take the B-tree stats path or the shared
// sync-or-dispatch-async routine.
func (r *Replicator) genericRedo(ctx context.Context, rec logrecord.Record) error {
	h := rec.Header
	if h.Type.HasMVCCAdvance() && h.MVCCID.Valid() {
		r.mvccNextID.bump(h.MVCCID)
	}

	if h.RecoveryIndex == recovery.GlobalUniqueStatsCommit {
		return r.applyBtreeStats(ctx, rec)
	}
	return r.redoRecordSyncOrDispatchAsync(ctx, rec)
}

// redoRecordSyncOrDispatchAsync is the shared routine of §4.4/§6: in
// synchronous mode it pins the page, applies the redo function, and
// stamps the page's LSN inline; in parallel mode it builds a generic job
// and hands it to the redo engine.
func (r *Replicator) redoRecordSyncOrDispatchAsync(ctx context.Context, rec logrecord.Record) error {
	if r.engine == nil {
		return r.applyGenericRedoSync(rec)
	}
	return r.engine.Add(&genericRedoJob{rec: rec, table: r.deps.Table, pageBuf: r.deps.PageBuffer})
}

func (r *Replicator) applyGenericRedoSync(rec logrecord.Record) error {
	return runGenericRedo(rec, r.deps.Table, r.deps.PageBuffer)
}

func runGenericRedo(rec logrecord.Record, table *recovery.Table, pageBuf *pagebuffer.Buffer) error {
	h := rec.Header
	fn, err := table.Lookup(h.RecoveryIndex)
	if err != nil {
		return err
	}
	return pageBuf.Apply(h.TargetPID, pagebuffer.PurposeRedo, func(page *pagebuffer.Page) error {
		if err := fn(context.Background(), page, *rec.Generic); err != nil {
			return err
		}
		page.SetLSN(h.LSN)
		page.SetDirty(true)
		return nil
	})
}

// genericRedoJob is the parallel-engine Job for an ordinary page-effect
// record: it carries the record's bytes and target PID and applies them
// through the same routine the synchronous path uses.
type genericRedoJob struct {
	rec     logrecord.Record
	table   *recovery.Table
	pageBuf *pagebuffer.Buffer
}

func (j *genericRedoJob) Key() redo.PageKey { return redo.KeyForPID(j.rec.Header.TargetPID) }
func (j *genericRedoJob) LSN() types.LSN    { return j.rec.Header.LSN }

func (j *genericRedoJob) Execute(wctx *redo.WorkerContext) error {
	return runGenericRedo(j.rec, j.table, j.pageBuf)
}
