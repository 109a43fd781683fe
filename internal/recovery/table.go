// Package recovery implements the recovery-function registry external
// collaborator (component B): a table mapping a record's recovery index
// to the concrete redo function that knows how to apply that record's
// payload to a pinned page.
package recovery

import (
	"context"

	"github.com/Greenminalee/cubrid/internal/logrecord"
	"github.com/Greenminalee/cubrid/internal/pagebuffer"
	"github.com/Greenminalee/cubrid/pkg/types"
	"github.com/Greenminalee/cubrid/pkg/verrors"
)

// GlobalUniqueStatsCommit is the distinguished recovery index that
// diverts a generic redo record into the B-tree unique-statistics path
// instead of the recovery function table.
const GlobalUniqueStatsCommit types.RecoveryIndex = -100

// RedoFunc applies a generic redo record's payload to a pinned page.
type RedoFunc func(ctx context.Context, page *pagebuffer.Page, payload logrecord.GenericPayload) error

// Table is the recovery index to RedoFunc registry.
type Table struct {
	fns map[types.RecoveryIndex]RedoFunc
}

// NewTable constructs an empty registry.
func NewTable() *Table {
	return &Table{fns: make(map[types.RecoveryIndex]RedoFunc)}
}

// Register associates idx with fn. Registering GlobalUniqueStatsCommit
// is rejected: that index is never dispatched through the table.
func (t *Table) Register(idx types.RecoveryIndex, fn RedoFunc) {
	if idx == GlobalUniqueStatsCommit {
		return
	}
	t.fns[idx] = fn
}

// Lookup returns the redo function for idx.
func (t *Table) Lookup(idx types.RecoveryIndex) (RedoFunc, error) {
	fn, ok := t.fns[idx]
	if !ok {
		return nil, verrors.ErrUnknownRecoveryIndex
	}
	return fn, nil
}

// DefaultRedo is a RedoFunc suitable for registering against ordinary
// page-effect recovery indices when the effect is simply "overwrite the
// page's bytes at offset 0 with the payload" — the common case for
// REDO/MVCC_REDO records carrying a full-page image. Callers with
// structured payloads register their own RedoFunc instead.
func DefaultRedo(ctx context.Context, page *pagebuffer.Page, payload logrecord.GenericPayload) error {
	n := copy(page.Bytes, payload.Bytes)
	_ = n
	return nil
}
