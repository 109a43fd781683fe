package replay

import (
	"golang.org/x/sync/singleflight"

	"github.com/Greenminalee/cubrid/pkg/types"
)

// Status is a point-in-time snapshot of the replicator's progress.
type Status struct {
	ReplayLSN types.LSN
	Watermark types.LSN
	Frontier  types.LSN
}

var statusGroup singleflight.Group

// Status returns the replicator's current progress snapshot. Concurrent
// callers within the same instant are deduplicated through a
// singleflight group, mirroring Executor.Metadata()'s use of the same
// mechanism to collapse concurrent describe calls.
func (r *Replicator) Status() Status {
	key := r.statusKey()
	v, _, _ := statusGroup.Do(key, func() (interface{}, error) {
		return r.computeStatus(), nil
	})
	return v.(Status)
}

func (r *Replicator) computeStatus() Status {
	watermark := r.ReplayLSN()
	if r.engine != nil {
		watermark = r.engine.MinimumLogLSN()
	}
	return Status{
		ReplayLSN: r.ReplayLSN(),
		Watermark: watermark,
		Frontier:  r.deps.Frontier(),
	}
}

// statusKey gives each Replicator instance its own singleflight bucket.
func (r *Replicator) statusKey() string {
	return pointerKey(r)
}
