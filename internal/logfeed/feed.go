// Package logfeed supplies cmd/replicatord's standalone log source: a
// tailer that reads length-framed, already-encoded log records from a
// file and appends them into a logrecord.Segment as they arrive. The
// wire format the records arrived in off the network is out of this
// module's scope per spec; this is only the glue needed to run the core
// as a real process against a real file.
package logfeed

import (
	"encoding/binary"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Greenminalee/cubrid/internal/logrecord"
)

// lengthPrefixSize is the size of the length prefix of each frame in the
// log file. A frame is a 4-byte big-endian length followed by that many
// bytes of an already-encoded record, as produced by
// logrecord.EncodeHeader.
const lengthPrefixSize = 4

// Tail polls path for newly appended frames and feeds each into seg,
// until stop is closed. It is meant to run in its own goroutine.
func Tail(path string, seg *logrecord.Segment, stop <-chan struct{}, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "logfeed: open log file")
	}
	defer f.Close()

	var offset int64
	lenBuf := make([]byte, lengthPrefixSize)
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		n, err := f.ReadAt(lenBuf, offset)
		if err != nil {
			if err == io.EOF && n < lengthPrefixSize {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return errors.Wrap(err, "logfeed: read frame length")
		}
		frameLen := binary.BigEndian.Uint32(lenBuf)
		body := make([]byte, frameLen)
		if _, err := f.ReadAt(body, offset+lengthPrefixSize); err != nil {
			if err == io.EOF {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return errors.Wrap(err, "logfeed: read frame body")
		}

		hdr, _, err := logrecord.PeekHeader(body)
		if err != nil {
			logger.Error("logfeed: corrupt frame, skipping", zap.Error(err))
		} else {
			seg.Append(hdr.LSN, hdr.ForwardLSN, body)
		}
		offset += lengthPrefixSize + int64(frameLen)
	}
}

// WriteFrame appends one length-framed record to w, for producers /
// tests that write a log file Tail can consume.
func WriteFrame(w io.Writer, record []byte) error {
	lenBuf := make([]byte, lengthPrefixSize)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(record)))
	if _, err := w.Write(lenBuf); err != nil {
		return err
	}
	_, err := w.Write(record)
	return err
}
