package redo

import (
	"context"

	"github.com/Greenminalee/cubrid/internal/logrecord"
	"github.com/Greenminalee/cubrid/pkg/types"
)

// WorkerContext is handed to every Job's Execute call. Each worker owns
// exactly one WorkerContext, constructed once at pool startup; it is
// never shared across goroutines, per the concurrency model's "log
// reader and decompression buffers are not shared" rule.
type WorkerContext struct {
	Ctx    context.Context
	Reader *logrecord.Reader

	// UndoScratch and RedoScratch are reusable decompression buffers,
	// independent per worker.
	UndoScratch []byte
	RedoScratch []byte

	// TransactionIndex names the synthetic "system" transaction under
	// which worker-applied redo runs.
	TransactionIndex types.TransactionID
}

// Job is a unit of work consumed by the parallel redo engine.
type Job interface {
	// Key reports which serialization lane this job belongs to.
	Key() PageKey

	// LSN is the originating record's LSN, used for ordering and
	// watermark computation.
	LSN() types.LSN

	// Execute applies the job's effect. It is called exactly once, by
	// the worker owning the job's lane.
	Execute(wctx *WorkerContext) error
}
