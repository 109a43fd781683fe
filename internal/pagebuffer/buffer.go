// Package pagebuffer implements the page buffer external collaborator:
// pin/unpin/set-lsa/set-dirty primitives over pages addressed by
// (volume_id, page_id), backed by an embedded pebble KV store exactly as
// the teacher's internal/storage package backs its own log-entry cache.
package pagebuffer

import (
	"encoding/binary"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Greenminalee/cubrid/pkg/types"
	"github.com/Greenminalee/cubrid/pkg/verrors"
)

// Purpose documents why a page was pinned, mirroring the original's
// pin-purpose enum used for diagnostics; it has no behavioral effect
// here.
type Purpose uint8

const (
	PurposeRedo Purpose = iota
	PurposeBtreeStats
)

// Page is a pinned page's in-memory view. Callers must call Buffer.Unpin
// when finished; the page's bytes must not be retained past Unpin.
type Page struct {
	PID   types.PID
	Bytes []byte
	LSN   types.LSN
	Dirty bool

	buf *Buffer
}

// SetLSN stamps the page with lsn, matching page_buffer.set_lsa.
func (p *Page) SetLSN(lsn types.LSN) {
	p.LSN = lsn
}

// SetDirty marks the page dirty, matching page_buffer.set_dirty.
func (p *Page) SetDirty(dirty bool) {
	p.Dirty = dirty
}

type entry struct {
	mu    sync.Mutex
	page  Page
	pins  int
}

// Buffer is the page buffer: a pinned-page cache over a pebble store.
type Buffer struct {
	db     *pebble.DB
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	entries map[types.PID]*entry
}

// New opens a Buffer with the given options.
func New(logger *zap.Logger, opts ...Option) (*Buffer, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	popts := &pebble.Options{}
	if cfg.Dir == "" {
		popts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(cfg.Dir, popts)
	if err != nil {
		return nil, errors.Wrap(err, "pagebuffer: open pebble store")
	}
	return &Buffer{
		db:      db,
		cfg:     cfg,
		logger:  logger,
		entries: make(map[types.PID]*entry),
	}, nil
}

// Close flushes all dirty pages and closes the backing store.
func (b *Buffer) Close() error {
	b.mu.Lock()
	ents := make([]*entry, 0, len(b.entries))
	for _, e := range b.entries {
		ents = append(ents, e)
	}
	b.mu.Unlock()

	for _, e := range ents {
		e.mu.Lock()
		if e.page.Dirty {
			_ = b.persist(&e.page)
		}
		e.mu.Unlock()
	}
	return b.db.Close()
}

func pidKey(pid types.PID) []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint32(buf[0:], uint32(pid.VolumeID))
	binary.BigEndian.PutUint64(buf[4:], uint64(pid.PageNumber))
	return buf
}

func (b *Buffer) loadOrCreate(pid types.PID) (*entry, error) {
	b.mu.Lock()
	e, ok := b.entries[pid]
	if !ok {
		e = &entry{page: Page{PID: pid, Bytes: make([]byte, b.cfg.PageSize)}}
		if val, closer, err := b.db.Get(pidKey(pid)); err == nil {
			copy(e.page.Bytes, val)
			_ = closer.Close()
		} else if err != pebble.ErrNotFound {
			b.mu.Unlock()
			return nil, errors.Wrap(err, "pagebuffer: read page")
		}
		b.entries[pid] = e
	}
	b.mu.Unlock()
	return e, nil
}

// Pin fetches and locks the page identified by pid for exclusive access,
// creating it (zero-filled) on first reference. purpose is diagnostic
// only. Pin never fails for reasons other than backing-store I/O error,
// which the replay driver treats as ErrPagePin per the error handling
// design.
//
// Pin's lock is only released by a matching call to Unpin, so the pair
// is only safe when nothing between them can panic or return without
// calling Unpin. Prefer Apply for any caller that invokes a
// caller-supplied function (a recovery.RedoFunc or similar) while the
// page is pinned.
func (b *Buffer) Pin(pid types.PID, purpose Purpose) (*Page, error) {
	e, err := b.loadOrCreate(pid)
	if err != nil {
		return nil, errors.Wrap(verrors.ErrPagePin, err.Error())
	}
	e.mu.Lock()
	e.pins++
	page := e.page
	page.buf = b
	return &page, nil
}

// Unpin releases the pin taken by Pin, persisting the page's committed
// bytes/lsn/dirty state back into the cache entry (and to the backing
// store, if dirty).
func (b *Buffer) Unpin(p *Page) error {
	b.mu.Lock()
	e, ok := b.entries[p.PID]
	b.mu.Unlock()
	if !ok {
		return errors.Errorf("pagebuffer: unpin unknown page %s", p.PID)
	}
	e.page = *p
	e.page.buf = nil
	var err error
	if p.Dirty {
		err = b.persist(p)
	}
	e.pins--
	e.mu.Unlock()
	return err
}

// Apply pins pid, runs fn against the page, and persists the result, in
// a single call whose entry lock is released through a defer rather
// than by a second, separate call. Unlike Pin/Unpin, a panic inside fn
// (for instance, from a misbehaving recovery.RedoFunc registered by the
// host process) cannot leave the page permanently locked: the deferred
// unlock still runs during the panic's unwind, and the panic continues
// propagating past Apply afterward.
//
// A failure to pin pid is returned wrapped in ErrPagePin, exactly as
// Pin itself wraps it, so callers that must treat pin failure
// differently from an ordinary fn failure can still tell the two apart
// with errors.Is.
func (b *Buffer) Apply(pid types.PID, purpose Purpose, fn func(*Page) error) error {
	e, err := b.loadOrCreate(pid)
	if err != nil {
		return errors.Wrap(verrors.ErrPagePin, err.Error())
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.pins++
	defer func() { e.pins-- }()

	page := e.page
	page.buf = b
	if err := fn(&page); err != nil {
		return err
	}

	e.page = page
	e.page.buf = nil
	if page.Dirty {
		return b.persist(&page)
	}
	return nil
}

func (b *Buffer) persist(p *Page) error {
	if err := b.db.Set(pidKey(p.PID), p.Bytes, pebble.Sync); err != nil {
		return errors.Wrap(err, "pagebuffer: persist page")
	}
	return nil
}

// LSN returns the currently stamped LSN of pid without pinning it, for
// diagnostics and tests.
func (b *Buffer) LSN(pid types.PID) types.LSN {
	b.mu.Lock()
	e, ok := b.entries[pid]
	b.mu.Unlock()
	if !ok {
		return types.NilLSN
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.page.LSN
}

// IsDirty reports pid's dirty bit without pinning it, for tests.
func (b *Buffer) IsDirty(pid types.PID) bool {
	b.mu.Lock()
	e, ok := b.entries[pid]
	b.mu.Unlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.page.Dirty
}
