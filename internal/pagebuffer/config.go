package pagebuffer

import "github.com/Greenminalee/cubrid/pkg/verrors"

// Config holds the tunables of a Buffer, following the functional-options
// shape used throughout this module's configuration surfaces.
type Config struct {
	// Dir is the on-disk directory backing the pebble store. Empty means
	// in-memory only (pebble's vfs.NewMem), used by tests.
	Dir string

	// PageSize is the fixed size, in bytes, of every page's payload.
	PageSize int
}

// Option configures a Buffer at construction time.
type Option interface {
	apply(*Config)
}

type funcOption func(*Config)

func (f funcOption) apply(cfg *Config) { f(cfg) }

// WithDir sets the on-disk directory for the backing pebble store. If
// unset, the buffer runs entirely in memory.
func WithDir(dir string) Option {
	return funcOption(func(cfg *Config) { cfg.Dir = dir })
}

// WithPageSize overrides the default page size.
func WithPageSize(n int) Option {
	return funcOption(func(cfg *Config) { cfg.PageSize = n })
}

const defaultPageSize = 16 * 1024

func newConfig(opts []Option) (Config, error) {
	cfg := Config{PageSize: defaultPageSize}
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	if cfg.PageSize <= 0 {
		return Config{}, verrors.ErrInvalidConfig
	}
	return cfg, nil
}
