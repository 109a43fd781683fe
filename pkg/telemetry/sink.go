// Package telemetry implements the performance-counter sink external
// collaborator: a thread-safe destination for redo-sync duration and
// replication-delay measurements, backed by OpenTelemetry metrics
// exactly as internal/storagenode/telemetry backs the teacher's own
// per-operation histograms.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Sink is the perf_counter collaborator used by the replay driver and
// redo workers.
type Sink interface {
	// Start begins timing an operation and returns a function that
	// records the elapsed duration as the redo-sync histogram.
	Start() func()

	// RecordDelay records a replication-delay measurement in
	// milliseconds.
	RecordDelay(ctx context.Context, delayMS int64)

	// DebugSkippedDelay logs the bogus-timestamp skip case unconditionally
	// — unlike RecordDelay's success-path log, this one is not gated by
	// the LOG_CALC_REPL_DELAY configuration flag.
	DebugSkippedDelay(atTimeMS int64)
}

type otelSink struct {
	logger       *zap.Logger
	logDelay     bool
	redoSync     metric.Float64Histogram
	replDelay    metric.Int64Histogram
}

// New constructs a Sink backed by meter, recording into it the
// redo_sync_duration_ms and replication_delay_ms histograms. logDelay
// corresponds to the LOG_CALC_REPL_DELAY configuration flag.
func New(meter metric.Meter, logger *zap.Logger, logDelay bool) (Sink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	redoSync, err := meter.Float64Histogram(
		"replication.redo_sync_duration_ms",
		metric.WithDescription("wall time spent in one redoUpTo call"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	replDelay, err := meter.Int64Histogram(
		"replication.delay_ms",
		metric.WithDescription("end-to-end replication lag observed at apply time"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return &otelSink{
		logger:    logger,
		logDelay:  logDelay,
		redoSync:  redoSync,
		replDelay: replDelay,
	}, nil
}

func (s *otelSink) Start() func() {
	begin := time.Now()
	return func() {
		s.redoSync.Record(context.Background(), float64(time.Since(begin).Milliseconds()))
	}
}

func (s *otelSink) RecordDelay(ctx context.Context, delayMS int64) {
	s.replDelay.Record(ctx, delayMS)
	if s.logDelay {
		if ce := s.logger.Check(zap.DebugLevel, "[CALC_REPL_DELAY]"); ce != nil {
			ce.Write(zap.Int64("msec", delayMS))
		}
	}
}

func (s *otelSink) DebugSkippedDelay(atTimeMS int64) {
	if ce := s.logger.Check(zap.DebugLevel, "[CALC_REPL_DELAY]: skipped, bogus at_time_ms"); ce != nil {
		ce.Write(zap.Int64("at_time_ms", atTimeMS))
	}
}

// nopSink is a Sink that discards every measurement, for tests that do not
// assert on telemetry.
type nopSink struct{}

// NewNop returns a Sink that discards all measurements.
func NewNop() Sink { return nopSink{} }

func (nopSink) Start() func()                              { return func() {} }
func (nopSink) RecordDelay(ctx context.Context, delayMS int64) {}
func (nopSink) DebugSkippedDelay(atTimeMS int64)            {}
