// Package logrecord implements the log reader external collaborator
// (component A): a positioned byte-cursor over a write-ahead log that
// decodes fixed-size, aligned record headers and type-specific payloads.
//
// The on-disk layout here is this module's own invention — spec.md treats
// the decoder as external — but its shape (fixed header, alignment-padded
// typed copy-in, variable payload) follows the original CUBRID log
// manager's reinterpret_copy_and_add_align discipline.
package logrecord

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/Greenminalee/cubrid/pkg/types"
	"github.com/Greenminalee/cubrid/pkg/verrors"
)

// Type identifies the variant of a log record, mirroring the record
// classification table of the replay driver.
type Type uint8

const (
	TypeUnknown Type = iota
	TypeRedo
	TypeMVCCRedo
	TypeUndoRedo
	TypeDiffUndoRedo
	TypeMVCCUndoRedo
	TypeMVCCDiffUndoRedo
	TypeRunPostpone
	TypeCompensate
	TypeDBExternRedo
	TypeCommit
	TypeAbort
	TypeDummyHAServerState
)

func (t Type) String() string {
	switch t {
	case TypeRedo:
		return "REDO"
	case TypeMVCCRedo:
		return "MVCC_REDO"
	case TypeUndoRedo:
		return "UNDOREDO"
	case TypeDiffUndoRedo:
		return "DIFF_UNDOREDO"
	case TypeMVCCUndoRedo:
		return "MVCC_UNDOREDO"
	case TypeMVCCDiffUndoRedo:
		return "MVCC_DIFF_UNDOREDO"
	case TypeRunPostpone:
		return "RUN_POSTPONE"
	case TypeCompensate:
		return "COMPENSATE"
	case TypeDBExternRedo:
		return "DBEXTERN_REDO"
	case TypeCommit:
		return "COMMIT"
	case TypeAbort:
		return "ABORT"
	case TypeDummyHAServerState:
		return "DUMMY_HA_SERVER_STATE"
	default:
		return "UNKNOWN"
	}
}

// HasMVCCAdvance reports whether records of this type carry an MVCC id
// that must bump the global mvcc_next_id watermark.
func (t Type) HasMVCCAdvance() bool {
	switch t {
	case TypeMVCCRedo, TypeMVCCUndoRedo, TypeMVCCDiffUndoRedo:
		return true
	default:
		return false
	}
}

// IsGenericRedo reports whether t is handled by the generic redo path.
func (t Type) IsGenericRedo() bool {
	switch t {
	case TypeRedo, TypeMVCCRedo, TypeUndoRedo, TypeDiffUndoRedo,
		TypeMVCCUndoRedo, TypeMVCCDiffUndoRedo, TypeRunPostpone, TypeCompensate:
		return true
	default:
		return false
	}
}

// IsDelayCarrier reports whether t carries a replication-delay timestamp.
func (t Type) IsDelayCarrier() bool {
	switch t {
	case TypeCommit, TypeAbort, TypeDummyHAServerState:
		return true
	default:
		return false
	}
}

const headerAlign = 8

// alignedSize rounds n up to the next multiple of headerAlign, matching
// the reader's platform-alignment discipline for typed copy-in.
func alignedSize(n int) int {
	if rem := n % headerAlign; rem != 0 {
		n += headerAlign - rem
	}
	return n
}

// Header is the fixed prefix present on every log record.
type Header struct {
	Type          Type
	LSN           types.LSN
	ForwardLSN    types.LSN
	TransactionID types.TransactionID
	MVCCID        types.MVCCID
	RecoveryIndex types.RecoveryIndex
	TargetPID     types.PID
}

const rawHeaderSize = 1 + 8 + 8 + 4 + 8 + 2 + 4 + 8

// GenericPayload is the body of a generic-redo-path record: raw bytes
// the recovery function's redo routine decodes for itself.
type GenericPayload struct {
	Bytes []byte
}

// BtreeStatsPayload is the decoded body of a B-tree unique-statistics
// record, yielded by DecodeBtreeStats.
type BtreeStatsPayload struct {
	BtreeID    BtreeID
	RootPID    types.PID
	Statistics UniqueStats
}

// BtreeID identifies a B-tree by its volume and root page.
type BtreeID struct {
	VolumeID     types.VolumeID
	RootPageID   types.PageNumber
}

// UniqueStats carries the per-index cardinality counters replicated
// directly to a B-tree root page.
type UniqueStats struct {
	Keys   int64
	OIDs   int64
	Nulls  int64
}

// DelayPayload is the decoded body of a COMMIT/ABORT/heartbeat record.
type DelayPayload struct {
	AtTimeMS int64
}

// DBExternPayload is the decoded descriptor of an external-redo record.
type DBExternPayload struct {
	RecoveryIndex types.RecoveryIndex
	Bytes         []byte
}

// Record is a fully decoded log record: header plus type-specific body.
type Record struct {
	Header  Header
	Generic *GenericPayload
	Btree   *BtreeStatsPayload
	Delay   *DelayPayload
	Extern  *DBExternPayload
}

// Frontier returns the current next-to-write LSN of the log appender.
// In production this polls the appender; tests supply a closure over an
// in-memory counter.
type Frontier func() types.LSN

// Reader is a positioned cursor over a log segment. Each replay
// goroutine (the driver, and every redo worker) owns its own Reader; none
// are shared across goroutines, per the concurrency model.
type Reader struct {
	segment *Segment
	pos     types.LSN
	forced  bool
}

// NewReader constructs a Reader bound to segment, initially positioned
// at NilLSN; call SeekAndFetch before the first ReadRecord.
func NewReader(segment *Segment) *Reader {
	return &Reader{segment: segment}
}

// Clone returns a new Reader over the same segment, used to give each
// redo worker its own cursor without sharing state.
func (r *Reader) Clone() *Reader {
	return &Reader{segment: r.segment}
}

// SeekAndFetch positions the cursor at lsn. If force is true, the
// segment's cached page is refreshed even if lsn is already within the
// cached window — used once at the top of every redoUpTo call as a
// cache-coherence safeguard against a stale page.
func (r *Reader) SeekAndFetch(lsn types.LSN, force bool) error {
	if !r.segment.Contains(lsn) {
		return errors.Wrapf(verrors.ErrCorruptLog, "seek past end of log: lsn=%s", lsn)
	}
	r.pos = lsn
	r.forced = force
	return nil
}

// ReadRecord decodes the record at the reader's current position and
// advances the position to the record's forward LSN.
func (r *Reader) ReadRecord() (Record, error) {
	raw, ok := r.segment.at(r.pos)
	if !ok {
		return Record{}, errors.Wrapf(verrors.ErrCorruptLog, "no record at lsn=%s", r.pos)
	}
	hdr, rest, err := decodeHeader(raw)
	if err != nil {
		return Record{}, err
	}
	if hdr.ForwardLSN <= hdr.LSN {
		return Record{}, errors.Wrapf(verrors.ErrCorruptLog, "non-increasing forward_lsn at lsn=%s", hdr.LSN)
	}
	r.pos = hdr.ForwardLSN
	rec := Record{Header: hdr}
	switch {
	case hdr.Type.IsGenericRedo() || hdr.Type == TypeDBExternRedo:
		if hdr.Type == TypeDBExternRedo {
			rec.Extern = &DBExternPayload{RecoveryIndex: hdr.RecoveryIndex, Bytes: rest}
		} else {
			rec.Generic = &GenericPayload{Bytes: rest}
		}
	case hdr.Type.IsDelayCarrier():
		d, err := decodeDelay(rest)
		if err != nil {
			return Record{}, err
		}
		rec.Delay = &d
	}
	return rec, nil
}

// PeekHeader decodes raw's header without requiring it to be loaded
// into a Segment first, for callers (such as internal/logfeed) that
// need a record's LSN/ForwardLSN before deciding how to store it.
func PeekHeader(raw []byte) (Header, []byte, error) {
	return decodeHeader(raw)
}

func decodeHeader(raw []byte) (Header, []byte, error) {
	if len(raw) < rawHeaderSize {
		return Header{}, nil, errors.Wrap(verrors.ErrCorruptLog, "truncated header")
	}
	b := raw
	h := Header{}
	h.Type = Type(b[0])
	b = b[1:]
	h.LSN = types.LSN(binary.BigEndian.Uint64(b))
	b = b[8:]
	h.ForwardLSN = types.LSN(binary.BigEndian.Uint64(b))
	b = b[8:]
	h.TransactionID = types.TransactionID(binary.BigEndian.Uint32(b))
	b = b[4:]
	h.MVCCID = types.MVCCID(binary.BigEndian.Uint64(b))
	b = b[8:]
	h.RecoveryIndex = types.RecoveryIndex(binary.BigEndian.Uint16(b))
	b = b[2:]
	h.TargetPID.VolumeID = types.VolumeID(int32(binary.BigEndian.Uint32(b)))
	b = b[4:]
	h.TargetPID.PageNumber = types.PageNumber(int64(binary.BigEndian.Uint64(b)))
	b = b[8:]
	rest := raw[alignedSize(rawHeaderSize):]
	if rest == nil {
		rest = []byte{}
	}
	return h, rest, nil
}

func decodeDelay(rest []byte) (DelayPayload, error) {
	if len(rest) < 8 {
		return DelayPayload{}, errors.Wrap(verrors.ErrCorruptLog, "truncated delay payload")
	}
	return DelayPayload{AtTimeMS: int64(binary.BigEndian.Uint64(rest))}, nil
}

// DecodeBtreeStats yields (btree_id, stats) from a generic redo payload
// whose recovery index is the distinguished GLOBAL_UNIQUE_STATS_COMMIT
// index. The caller (the generic redo path) has already confirmed the
// recovery index before calling this.
func DecodeBtreeStats(payload []byte) (BtreeStatsPayload, error) {
	const wantLen = 4 + 8 + 8 + 8 + 8
	if len(payload) < wantLen {
		return BtreeStatsPayload{}, errors.Wrap(verrors.ErrCorruptLog, "truncated btree stats payload")
	}
	b := payload
	var out BtreeStatsPayload
	out.BtreeID.VolumeID = types.VolumeID(int32(binary.BigEndian.Uint32(b)))
	b = b[4:]
	out.BtreeID.RootPageID = types.PageNumber(int64(binary.BigEndian.Uint64(b)))
	b = b[8:]
	out.RootPID = types.PID{VolumeID: out.BtreeID.VolumeID, PageNumber: out.BtreeID.RootPageID}
	out.Statistics.Keys = int64(binary.BigEndian.Uint64(b))
	b = b[8:]
	out.Statistics.OIDs = int64(binary.BigEndian.Uint64(b))
	b = b[8:]
	out.Statistics.Nulls = int64(binary.BigEndian.Uint64(b))
	return out, nil
}

// EncodeHeader is the mirror of decodeHeader, exposed so tests and the
// in-memory segment builder can construct synthetic logs without
// duplicating the wire layout.
func EncodeHeader(h Header, body []byte) []byte {
	buf := make([]byte, alignedSize(rawHeaderSize))
	buf[0] = byte(h.Type)
	binary.BigEndian.PutUint64(buf[1:], uint64(h.LSN))
	binary.BigEndian.PutUint64(buf[9:], uint64(h.ForwardLSN))
	binary.BigEndian.PutUint32(buf[17:], uint32(h.TransactionID))
	binary.BigEndian.PutUint64(buf[21:], uint64(h.MVCCID))
	binary.BigEndian.PutUint16(buf[29:], uint16(h.RecoveryIndex))
	binary.BigEndian.PutUint32(buf[31:], uint32(h.TargetPID.VolumeID))
	binary.BigEndian.PutUint64(buf[35:], uint64(h.TargetPID.PageNumber))
	return append(buf, body...)
}

// EncodeDelayBody encodes a DelayPayload body for use with EncodeHeader.
func EncodeDelayBody(atTimeMS int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(atTimeMS))
	return buf
}

// EncodeBtreeStatsBody encodes a BtreeStatsPayload body for use with
// EncodeHeader.
func EncodeBtreeStatsBody(id BtreeID, stats UniqueStats) []byte {
	buf := make([]byte, 4+8+8+8+8)
	binary.BigEndian.PutUint32(buf[0:], uint32(id.VolumeID))
	binary.BigEndian.PutUint64(buf[4:], uint64(id.RootPageID))
	binary.BigEndian.PutUint64(buf[12:], uint64(stats.Keys))
	binary.BigEndian.PutUint64(buf[20:], uint64(stats.OIDs))
	binary.BigEndian.PutUint64(buf[28:], uint64(stats.Nulls))
	return buf
}
