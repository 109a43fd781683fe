// Package types defines the core identifiers used across the log
// replication core: log sequence numbers, page identifiers, transaction
// and MVCC identifiers, and recovery index values.
package types

import "fmt"

// LSN is a log sequence number: a strictly monotonic offset into the log.
type LSN uint64

// NilLSN is the LSN value meaning "no position", used as the zero value
// of fields that have not yet observed a record.
const NilLSN LSN = 0

func (l LSN) String() string {
	return fmt.Sprintf("%d", uint64(l))
}

// Valid reports whether l denotes an actual log position.
func (l LSN) Valid() bool {
	return l != NilLSN
}

// VolumeID identifies a volume within the page server.
type VolumeID int32

// PageNumber identifies a page within a volume.
type PageNumber int64

// PID identifies a page uniquely within the page server.
type PID struct {
	VolumeID   VolumeID
	PageNumber PageNumber
}

// NullPID is the PID of a record that does not target any page.
var NullPID = PID{}

// OrderSentinelPID is a synthetic PID used by the parallel redo engine to
// represent a global commit/checkpoint ordering barrier rather than any
// real page. It is deliberately constructed from values no real PID can
// take.
var OrderSentinelPID = PID{VolumeID: -2, PageNumber: -2}

func (p PID) String() string {
	return fmt.Sprintf("%d|%d", p.VolumeID, p.PageNumber)
}

// IsNull reports whether p is the null PID.
func (p PID) IsNull() bool {
	return p == NullPID
}

// IsOrderSentinel reports whether p is the global order-sentinel PID.
func (p PID) IsOrderSentinel() bool {
	return p == OrderSentinelPID
}

// TransactionID identifies a transaction that produced a log record.
type TransactionID int32

// MVCCID identifies a row version under multi-version concurrency
// control.
type MVCCID uint64

// MVCCIDNull is the MVCCID value meaning "no MVCC id attached".
const MVCCIDNull MVCCID = 0

// Valid reports whether id is a real MVCC id.
func (id MVCCID) Valid() bool {
	return id != MVCCIDNull
}

// RecoveryIndex selects the redo function registered for a log record.
type RecoveryIndex int16

// RecoveryIndexInvalid is the zero value of RecoveryIndex, never a
// legitimate registered index.
const RecoveryIndexInvalid RecoveryIndex = -1
