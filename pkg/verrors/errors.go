// Package verrors defines the sentinel errors raised by the replication
// core. Callers should compare against these with errors.Is; wrapping is
// done with github.com/pkg/errors so that every returned error carries a
// stack trace back to its origin.
package verrors

import "github.com/pkg/errors"

var (
	// ErrClosed is returned by any operation attempted on a replicator,
	// engine, or wait condition that has already been closed.
	ErrClosed = errors.New("verrors: closed")

	// ErrShutdown is returned to callers blocked in a wait on the
	// parallel redo engine's watermark once the engine is stopped.
	ErrShutdown = errors.New("verrors: shutting down")

	// ErrCorruptLog is returned by the log reader when a record header
	// fails validation (bad length, bad alignment, truncated record).
	ErrCorruptLog = errors.New("verrors: corrupt log record")

	// ErrInvalidConfig is returned by config validation when a supplied
	// option is out of range (e.g. non-positive parallel count).
	ErrInvalidConfig = errors.New("verrors: invalid configuration")

	// ErrPagePin is returned when a page cannot be pinned for redo.
	ErrPagePin = errors.New("verrors: failed to pin page")

	// ErrUnknownRecoveryIndex is returned when a record's recovery index
	// has no registered redo function.
	ErrUnknownRecoveryIndex = errors.New("verrors: unknown recovery index")

	// ErrJobFailed is returned to callers blocked in a wait on the
	// parallel redo engine's watermark once a worker's job execution has
	// failed and the pool is tearing itself down; the jobs still queued
	// behind the failed one will never run; their LSNs never become
	// reachable.
	ErrJobFailed = errors.New("verrors: redo job failed")
)
