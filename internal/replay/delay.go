package replay

import (
	"context"

	"go.uber.org/zap"

	"github.com/Greenminalee/cubrid/internal/logrecord"
	"github.com/Greenminalee/cubrid/internal/redo"
	"github.com/Greenminalee/cubrid/pkg/telemetry"
	"github.com/Greenminalee/cubrid/pkg/types"
)

// dispatchDelay handles COMMIT/ABORT/heartbeat records (§4.6): measure
// replication lag at the time the effect is actually completed, not at
// classification time, which is why this has to be a deferred job in
// parallel mode rather than an inline computation.
func (r *Replicator) dispatchDelay(ctx context.Context, rec logrecord.Record) error {
	atTimeMS := rec.Delay.AtTimeMS

	if r.engine == nil {
		recordDelay(atTimeMS, r.deps.NowMS, r.deps.Sink, r.deps.Logger)
		return nil
	}
	return r.engine.Add(&delayJob{
		atTimeMS: atTimeMS,
		lsn:      rec.Header.LSN,
		nowMS:    r.deps.NowMS,
		sink:     r.deps.Sink,
		logger:   r.deps.Logger,
	})
}

// recordDelay computes now_ms - at_time_ms and reports it, unless
// at_time_ms is bogus (≤ 0), a known upstream quirk — in which case the
// measurement is skipped and a debug line is logged instead. A negative
// computed delay is not a known quirk; it means the clock or the log
// itself is misbehaving, so it trips the invariant check rather than
// being silently clamped.
func recordDelay(atTimeMS int64, nowMS func() int64, sink telemetry.Sink, logger *zap.Logger) {
	if atTimeMS <= 0 {
		sink.DebugSkippedDelay(atTimeMS)
		return
	}
	delay := nowMS() - atTimeMS
	assertInvariant(logger, delay >= 0, "negative replication delay computed",
		zap.Int64("at_time_ms", atTimeMS), zap.Int64("delay_ms", delay))
	if delay < 0 {
		delay = 0
	}
	sink.RecordDelay(context.Background(), delay)
}

// delayJob is the parallel-engine Job for delay measurement. It is
// keyed by the sentinel PID: it does not target a real page, but must
// still participate in global ordering so the outer watermark accounts
// for it.
type delayJob struct {
	atTimeMS int64
	lsn      types.LSN
	nowMS    func() int64
	sink     telemetry.Sink
	logger   *zap.Logger
}

func (j *delayJob) Key() redo.PageKey { return redo.KeyForPID(types.OrderSentinelPID) }
func (j *delayJob) LSN() types.LSN    { return j.lsn }

func (j *delayJob) Execute(wctx *redo.WorkerContext) error {
	recordDelay(j.atTimeMS, j.nowMS, j.sink, j.logger)
	return nil
}
