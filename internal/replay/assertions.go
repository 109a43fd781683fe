package replay

import "go.uber.org/zap"

// debugAssertionsEnabled gates the driver's invariant checks (replay LSN
// regression, negative replication delay) the way the teacher's
// writer.go gates its own uncommittedLLSNEnd CAS-failure check: trip
// loudly in builds meant to catch bugs, degrade to a logged error
// otherwise. zap.Logger.DPanic already carries that same
// development-vs-production split one level down, so this const decides
// whether a violation reaches DPanic at all.
const debugAssertionsEnabled = true

// assertInvariant reports an invariant violation through logger. ok
// false means the invariant was violated.
func assertInvariant(logger *zap.Logger, ok bool, msg string, fields ...zap.Field) {
	if ok {
		return
	}
	if debugAssertionsEnabled {
		logger.DPanic(msg, fields...)
		return
	}
	logger.Error(msg, fields...)
}
