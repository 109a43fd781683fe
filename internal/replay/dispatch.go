package replay

import (
	"context"

	"github.com/Greenminalee/cubrid/internal/logrecord"
)

// dispatch is the record classification switch (component D, §4.2):
// single-threaded, so total-ordered by LSN by construction.
func (r *Replicator) dispatch(ctx context.Context, rec logrecord.Record) error {
	switch {
	case rec.Header.Type == logrecord.TypeDBExternRedo:
		return r.externRedo(ctx, rec)
	case rec.Header.Type.IsGenericRedo():
		return r.genericRedo(ctx, rec)
	case rec.Header.Type.IsDelayCarrier():
		return r.dispatchDelay(ctx, rec)
	default:
		// Unknown record type: silently ignored; replayLSN still
		// advances in redoUpTo.
		return nil
	}
}

// externRedo handles DBEXTERN_REDO: a small descriptor is read and the
// recovery index's redo function is invoked directly, with no page fix.
func (r *Replicator) externRedo(ctx context.Context, rec logrecord.Record) error {
	fn, err := r.deps.Table.Lookup(rec.Extern.RecoveryIndex)
	if err != nil {
		return err
	}
	return fn(ctx, nil, logrecord.GenericPayload{Bytes: rec.Extern.Bytes})
}
