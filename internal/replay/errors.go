package replay

import (
	"context"

	"go.uber.org/zap"
)

// FatalReporter is invoked when the core encounters an error the design
// treats as fatal: decoder failure, or page-pin failure in the B-tree
// stats path. Whether it actually aborts the process is left to the
// implementation; the default does.
type FatalReporter interface {
	Fatal(ctx context.Context, msg string, fields ...zap.Field)
}

type loggingFatalReporter struct {
	logger *zap.Logger
}

// NewLoggingFatalReporter returns a FatalReporter that logs at
// zap.Fatal level, which terminates the process via os.Exit(1).
func NewLoggingFatalReporter(logger *zap.Logger) FatalReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &loggingFatalReporter{logger: logger}
}

func (r *loggingFatalReporter) Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	r.logger.Fatal(msg, fields...)
}

// nonFatalReporter passes each message to onFatal instead of aborting,
// for tests that must observe the fatal path without killing the test
// binary.
type nonFatalReporter struct {
	logger  *zap.Logger
	onFatal func(msg string)
}

// NewTestFatalReporter returns a FatalReporter that records the call
// instead of aborting, for use in tests.
func NewTestFatalReporter(onFatal func(msg string)) FatalReporter {
	return &nonFatalReporter{logger: zap.NewNop(), onFatal: onFatal}
}

func (r *nonFatalReporter) Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	if r.onFatal != nil {
		r.onFatal(msg)
	}
}
