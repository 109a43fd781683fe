package redo

import "github.com/Greenminalee/cubrid/pkg/verrors"

// Config holds the tunables of an Engine.
type Config struct {
	// WorkerCount is N in spec terms: the number of per-page partitions.
	// It must be > 0; N == 0 means synchronous replay and is handled by
	// the replay driver without ever constructing an Engine.
	WorkerCount int

	// QueueDepth bounds each worker's input channel.
	QueueDepth int

	// scratchSize sizes each worker's pair of decompression scratch
	// buffers.
	scratchSize int

	// OnJobError, if set, is invoked by a worker whose Job's Execute
	// returns an error; if more than one worker's job fails before the
	// pool stops, each of them invokes it. The engine
	// treats this as fatal to the worker pool: the erroring worker stops
	// and every sibling worker is canceled alongside it. A nil
	// OnJobError still stops the pool the same way; it is purely a
	// notification hook for the host process to escalate however it
	// escalates its other fatal conditions.
	OnJobError func(error)
}

// ScratchSize returns the configured per-worker scratch buffer size.
func (c Config) ScratchSize() int {
	if c.scratchSize <= 0 {
		return defaultScratchSize
	}
	return c.scratchSize
}

// Option configures an Engine at construction time.
type Option interface {
	apply(*Config)
}

type funcOption func(*Config)

func (f funcOption) apply(cfg *Config) { f(cfg) }

// WithWorkerCount sets N, the per-page worker partition count.
func WithWorkerCount(n int) Option {
	return funcOption(func(cfg *Config) { cfg.WorkerCount = n })
}

// WithQueueDepth overrides the default per-worker queue depth.
func WithQueueDepth(n int) Option {
	return funcOption(func(cfg *Config) { cfg.QueueDepth = n })
}

// WithScratchSize overrides the default per-worker scratch buffer size.
func WithScratchSize(n int) Option {
	return funcOption(func(cfg *Config) { cfg.scratchSize = n })
}

// WithOnJobError registers fn to be called when a Job's Execute fails.
func WithOnJobError(fn func(error)) Option {
	return funcOption(func(cfg *Config) { cfg.OnJobError = fn })
}

const defaultQueueDepth = 256
const defaultScratchSize = 64 * 1024

func newConfig(opts []Option) (Config, error) {
	cfg := Config{QueueDepth: defaultQueueDepth}
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	if cfg.WorkerCount <= 0 {
		return Config{}, verrors.ErrInvalidConfig
	}
	if cfg.QueueDepth <= 0 {
		return Config{}, verrors.ErrInvalidConfig
	}
	return cfg, nil
}
