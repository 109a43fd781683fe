package replay

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Greenminalee/cubrid/internal/logrecord"
	"github.com/Greenminalee/cubrid/internal/pagebuffer"
	"github.com/Greenminalee/cubrid/internal/recovery"
	"github.com/Greenminalee/cubrid/internal/redo"
	"github.com/Greenminalee/cubrid/pkg/types"
	"github.com/Greenminalee/cubrid/pkg/verrors"
)

// applyBtreeStats handles the B-tree unique-statistics special case
// (§4.6): the record decodes to (btree_id, stats); the effect is applied
// directly to the B-tree root page rather than through the recovery
// function table, because crash recovery aggregates these in-memory but
// a page-server follower must make them visible immediately.
func (r *Replicator) applyBtreeStats(ctx context.Context, rec logrecord.Record) error {
	decoded, err := logrecord.DecodeBtreeStats(rec.Generic.Bytes)
	if err != nil {
		r.deps.FatalReporter.Fatal(ctx, "btree stats decode failure", zap.Error(err))
		return err
	}

	if r.engine == nil {
		return applyBtreeStatsSync(ctx, decoded, rec.Header.LSN, r.deps.PageBuffer, r.deps.BtreeUpdater, r.deps.FatalReporter)
	}
	return r.engine.Add(&btreeStatsJob{
		decoded:      decoded,
		recordLSN:    rec.Header.LSN,
		pageBuf:      r.deps.PageBuffer,
		updater:      r.deps.BtreeUpdater,
		fatal:        r.deps.FatalReporter,
	})
}

func applyBtreeStatsSync(ctx context.Context, decoded logrecord.BtreeStatsPayload, recordLSN types.LSN, pageBuf *pagebuffer.Buffer, updater recovery.BtreeRootStatsUpdater, fatal FatalReporter) error {
	err := pageBuf.Apply(decoded.RootPID, pagebuffer.PurposeBtreeStats, func(page *pagebuffer.Page) error {
		if err := updater.UpdateStats(page, decoded.Statistics); err != nil {
			return err
		}
		page.SetLSN(recordLSN)
		page.SetDirty(true)
		return nil
	})
	if err != nil && errors.Is(err, verrors.ErrPagePin) {
		fatal.Fatal(ctx, "btree stats root page pin failure", zap.Error(err), zap.Stringer("root_pid", decoded.RootPID))
	}
	return err
}

// btreeStatsJob is the parallel-engine Job for the B-tree stats special
// case, keyed by the B-tree's root PID so it serializes against any
// other job targeting that same root page.
type btreeStatsJob struct {
	decoded   logrecord.BtreeStatsPayload
	recordLSN types.LSN
	pageBuf   *pagebuffer.Buffer
	updater   recovery.BtreeRootStatsUpdater
	fatal     FatalReporter
}

func (j *btreeStatsJob) Key() redo.PageKey { return redo.KeyForPID(j.decoded.RootPID) }
func (j *btreeStatsJob) LSN() types.LSN    { return j.recordLSN }

func (j *btreeStatsJob) Execute(wctx *redo.WorkerContext) error {
	return applyBtreeStatsSync(wctx.Ctx, j.decoded, j.recordLSN, j.pageBuf, j.updater, j.fatal)
}
