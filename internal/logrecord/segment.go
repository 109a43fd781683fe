package logrecord

import (
	"sync"

	"github.com/Greenminalee/cubrid/pkg/types"
)

// Segment is an append-only, in-memory log store keyed by record LSN.
// A real page server backs this with durable storage; this module's
// standalone tests and cmd/replicatord's default mode use this
// implementation directly, since the on-disk log format is external to
// the core per spec.
type Segment struct {
	mu      sync.RWMutex
	records map[types.LSN][]byte
	tail    types.LSN
}

// NewSegment constructs an empty segment.
func NewSegment() *Segment {
	return &Segment{records: make(map[types.LSN][]byte)}
}

// Append stores raw (as produced by EncodeHeader) at its own header LSN
// and advances the segment's write-frontier to the record's forward LSN.
// Append is the only writer; it is safe to call concurrently with reads
// through Reader, which only ever look backward from the frontier.
func (s *Segment) Append(lsn, forwardLSN types.LSN, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[lsn] = raw
	if forwardLSN > s.tail {
		s.tail = forwardLSN
	}
}

// Contains reports whether lsn is strictly less than the current
// write-frontier. It does not check that a record starts at lsn; a
// missing record is reported by Reader.ReadRecord.
func (s *Segment) Contains(lsn types.LSN) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lsn < s.tail
}

// Frontier returns a Frontier closure bound to this segment's current
// write-frontier, suitable for passing to a Replicator.
func (s *Segment) Frontier() Frontier {
	return func() types.LSN {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.tail
	}
}

func (s *Segment) at(lsn types.LSN) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.records[lsn]
	return raw, ok
}
