package redo

import "github.com/Greenminalee/cubrid/pkg/types"

// KeyKind distinguishes an ordinary per-page job from a virtual,
// globally-ordered job (delay measurement, and anything else that must
// participate in ordering without targeting a real page).
type KeyKind uint8

const (
	KeyPage KeyKind = iota
	KeySentinel
)

// PageKey is the tagged variant the engine dispatches on to choose
// either per-page FIFO partitioning or the global-order lane.
type PageKey struct {
	Kind KeyKind
	PID  types.PID
}

// KeyForPID derives a PageKey from a job's target PID, recognizing the
// order-sentinel PID as the global-order lane marker.
func KeyForPID(pid types.PID) PageKey {
	if pid.IsOrderSentinel() {
		return PageKey{Kind: KeySentinel}
	}
	return PageKey{Kind: KeyPage, PID: pid}
}

func (k PageKey) String() string {
	if k.Kind == KeySentinel {
		return "sentinel"
	}
	return k.PID.String()
}
