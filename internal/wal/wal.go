// Package wal implements a segmented write-ahead log. storage.Manager
// appends each save's raw input bytes as one record before the delta engine
// chunks them. Every record is length-prefixed and CRC32-checked; Replay
// (which Open does not call) reads forward from the oldest segment and
// truncates the log at the first record that fails its checksum, discarding
// only the tail that a crash left half-written.
package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"nasstore/internal/format"
)

const (
	walVersion    = 1
	recordLenSize = 4
	recordCRCSize = 4
	segmentPrefix = "wal-"
	segmentSuffix = ".log"
)

var (
	ErrRecordTooLarge = errors.New("wal: record exceeds maximum size")
	ErrClosed         = errors.New("wal: log closed")
)

// Record is one entry read back during replay.
type Record struct {
	SegmentSeq int
	Offset     int64
	Payload    []byte
}

// WAL is a segmented, append-only, crash-safe log.
type WAL struct {
	dir         string
	segmentSize int64

	mu      sync.Mutex
	seq     int
	f       *os.File
	w       *bufio.Writer
	written int64
	closed  bool
}

// Config configures a WAL.
type Config struct {
	Dir         string
	SegmentSize int64 // zero defaults to 64 MiB
}

const defaultSegmentSize = 64 * 1024 * 1024

// Open opens (creating if necessary) a WAL directory, positioning the
// writer at the end of the newest segment.
func Open(cfg Config) (*WAL, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	segSize := cfg.SegmentSize
	if segSize <= 0 {
		segSize = defaultSegmentSize
	}
	w := &WAL{dir: cfg.Dir, segmentSize: segSize}

	segs, err := listSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		if err := w.rotate(); err != nil {
			return nil, err
		}
		return w, nil
	}
	last := segs[len(segs)-1]
	w.seq = last
	f, err := os.OpenFile(segmentPath(cfg.Dir, last), os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	w.f = f
	w.w = bufio.NewWriter(f)
	w.written = info.Size()
	return w, nil
}

func segmentPath(dir string, seq int) string {
	return filepath.Join(dir, fmt.Sprintf("%s%010d%s", segmentPrefix, seq, segmentSuffix))
}

func listSegments(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var segs []int
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, segmentPrefix) || !strings.HasSuffix(name, segmentSuffix) {
			continue
		}
		numStr := strings.TrimSuffix(strings.TrimPrefix(name, segmentPrefix), segmentSuffix)
		n, err := strconv.Atoi(numStr)
		if err != nil {
			continue
		}
		segs = append(segs, n)
	}
	sort.Ints(segs)
	return segs, nil
}

func (w *WAL) rotate() error {
	if w.f != nil {
		if err := w.w.Flush(); err != nil {
			return err
		}
		if err := w.f.Sync(); err != nil {
			return err
		}
		if err := w.f.Close(); err != nil {
			return err
		}
	}
	w.seq++
	f, err := os.OpenFile(segmentPath(w.dir, w.seq), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	h := format.Header{Type: format.TypeWALSegment, Version: walVersion}
	hdr := h.Encode()
	if _, err := f.Write(hdr[:]); err != nil {
		f.Close()
		return err
	}
	w.f = f
	w.w = bufio.NewWriter(f)
	w.written = int64(format.HeaderSize)
	return nil
}

// Append writes payload as one record and fsyncs the segment before
// returning, so a successful Append means the bytes are durable on disk.
func (w *WAL) Append(payload []byte) (Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return Record{}, ErrClosed
	}
	if uint64(len(payload)) > 1<<32-1 {
		return Record{}, ErrRecordTooLarge
	}

	recSize := int64(recordLenSize + recordCRCSize + len(payload))
	if w.written+recSize > w.segmentSize {
		if err := w.rotate(); err != nil {
			return Record{}, err
		}
	}

	offset := w.written
	var lenBuf [recordLenSize]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	crc := crc32.ChecksumIEEE(payload)
	var crcBuf [recordCRCSize]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc)

	if _, err := w.w.Write(lenBuf[:]); err != nil {
		return Record{}, err
	}
	if _, err := w.w.Write(crcBuf[:]); err != nil {
		return Record{}, err
	}
	if _, err := w.w.Write(payload); err != nil {
		return Record{}, err
	}
	if err := w.w.Flush(); err != nil {
		return Record{}, err
	}
	if err := w.f.Sync(); err != nil {
		return Record{}, err
	}
	w.written += recSize

	return Record{SegmentSeq: w.seq, Offset: offset, Payload: payload}, nil
}

// Replay reads every valid record across all segments in order, invoking fn
// for each. If a record fails its CRC check or is truncated mid-write (the
// classic crash-during-append scenario), Replay truncates that segment file
// at the offset of the last valid record and stops -- any bytes after that
// point are assumed to belong to a write that never completed.
func Replay(dir string, fn func(Record) error) error {
	segs, err := listSegments(dir)
	if err != nil {
		return err
	}
	for _, seq := range segs {
		if err := replaySegment(dir, seq, fn); err != nil {
			if errors.Is(err, errTailTruncated) {
				return nil
			}
			return err
		}
	}
	return nil
}

func replaySegment(dir string, seq int, fn func(Record) error) error {
	path := segmentPath(dir, seq)
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	hdrBuf := make([]byte, format.HeaderSize)
	if _, err := io.ReadFull(f, hdrBuf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if _, err := format.DecodeAndValidate(hdrBuf, format.TypeWALSegment, walVersion); err != nil {
		return err
	}

	offset := int64(format.HeaderSize)
	for {
		lenBuf := make([]byte, recordLenSize)
		n, err := io.ReadFull(f, lenBuf)
		if errors.Is(err, io.EOF) {
			return nil // clean end of segment
		}
		if err != nil || n < recordLenSize {
			return truncateAt(f, offset)
		}
		payloadLen := binary.LittleEndian.Uint32(lenBuf)

		crcBuf := make([]byte, recordCRCSize)
		if _, err := io.ReadFull(f, crcBuf); err != nil {
			return truncateAt(f, offset)
		}
		wantCRC := binary.LittleEndian.Uint32(crcBuf)

		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(f, payload); err != nil {
			return truncateAt(f, offset)
		}
		if crc32.ChecksumIEEE(payload) != wantCRC {
			return truncateAt(f, offset)
		}

		if err := fn(Record{SegmentSeq: seq, Offset: offset, Payload: payload}); err != nil {
			return err
		}
		offset += int64(recordLenSize + recordCRCSize + len(payload))
	}
}

// errTailTruncated reports that replaySegment cut off a bad tail; Replay
// stops there.
var errTailTruncated = errors.New("wal: tail truncated")

func truncateAt(f *os.File, offset int64) error {
	if err := f.Truncate(offset); err != nil {
		return err
	}
	return errTailTruncated
}

// Close flushes and closes the active segment.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.w.Flush(); err != nil {
		return err
	}
	if err := w.f.Sync(); err != nil {
		return err
	}
	return w.f.Close()
}

// PurgeSegmentsBefore deletes every segment file strictly older than seq.
// Nothing in this repository calls it, and there is no checkpoint that
// records which segments are still needed.
func PurgeSegmentsBefore(dir string, seq int) error {
	segs, err := listSegments(dir)
	if err != nil {
		return err
	}
	for _, s := range segs {
		if s < seq {
			if err := os.Remove(segmentPath(dir, s)); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}
	return nil
}
