package replay

import "github.com/Greenminalee/cubrid/pkg/verrors"

// Config holds the replication core's one recognized configuration
// knob beyond its Deps: REPLICATION_PARALLEL_COUNT. LOG_CALC_REPL_DELAY
// is not repeated here; it only ever gates telemetry.Sink's own debug
// logging, so Deps.Sink (already constructed with that flag) is the
// single source of truth for it.
type Config struct {
	// ParallelCount is REPLICATION_PARALLEL_COUNT: 0 selects synchronous
	// replay by the driver itself, N > 0 starts an N-worker parallel
	// redo engine. Negative is rejected.
	ParallelCount int
}

// Option configures a Replicator at construction time.
type Option interface {
	apply(*Config)
}

type funcOption func(*Config)

func (f funcOption) apply(cfg *Config) { f(cfg) }

// WithParallelCount sets REPLICATION_PARALLEL_COUNT.
func WithParallelCount(n int) Option {
	return funcOption(func(cfg *Config) { cfg.ParallelCount = n })
}

func newConfig(opts []Option) (Config, error) {
	var cfg Config
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	if cfg.ParallelCount < 0 {
		return Config{}, verrors.ErrInvalidConfig
	}
	return cfg, nil
}
