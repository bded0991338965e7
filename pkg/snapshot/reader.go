package snapshot

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"

	"github.com/granitekv/snaplog/pkg/bufpool"
)

// Reader lazily deserializes typed batches from a raw snapshot reader.
// maxBatchBytes bounds how many serialized bytes are packed into one
// returned batch; it is a buffering knob, not a correctness boundary.
// Frames holding more than maxBatchBytes are split into several batches
// with consecutive base offsets, so the record stream is always complete
// and in order.
type Reader[T any] struct {
	raw           RawSnapshotReader
	serde         Deserializer[T]
	pool          *bufpool.Pool
	maxBatchBytes int

	// current frame being decoded
	frame      []byte
	pos        int
	remaining  uint32
	nextOffset uint64
	epoch      uint32

	staged *Batch[T]
	err    error
	done   bool
	closed bool
}

// NewReader binds a typed reader to a frozen raw snapshot. Scratch buffers
// come from pool and are guaranteed to be returned when the reader is
// exhausted or closed. A non-positive maxBatchBytes means unbounded.
func NewReader[T any](raw RawSnapshotReader, serde Deserializer[T], pool *bufpool.Pool, maxBatchBytes int) *Reader[T] {
	if maxBatchBytes <= 0 {
		maxBatchBytes = math.MaxInt32
	}
	return &Reader[T]{raw: raw, serde: serde, pool: pool, maxBatchBytes: maxBatchBytes}
}

// SnapshotID returns the id of the snapshot being read.
func (r *Reader[T]) SnapshotID() SnapshotID {
	return r.raw.SnapshotID()
}

// HasNext reports whether another batch is available. It is idempotent and
// does not advance the logical position.
func (r *Reader[T]) HasNext() bool {
	if r.staged != nil {
		return true
	}
	if r.closed || r.done || r.err != nil {
		return false
	}
	r.load()
	return r.staged != nil
}

// Next returns the next batch. It fails with ErrEndOfSequence when the
// reader is exhausted and with ErrCorruptSnapshot when the snapshot bytes
// are malformed; corruption leaves the reader terminally unusable.
func (r *Reader[T]) Next() (Batch[T], error) {
	if !r.HasNext() {
		if r.err != nil {
			return Batch[T]{}, r.err
		}
		return Batch[T]{}, ErrEndOfSequence
	}
	batch := *r.staged
	r.staged = nil
	return batch, nil
}

// Close releases pooled buffers and the underlying raw reader. It is
// idempotent and has no effect on the frozen artifact or other readers.
func (r *Reader[T]) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.releaseFrame()
	r.staged = nil
	return r.raw.Close()
}

func (r *Reader[T]) load() {
	if r.remaining == 0 {
		if !r.nextFrame() {
			return
		}
	}

	records := make([]T, 0, r.remaining)
	used := 0
	for r.remaining > 0 {
		if r.pos+recordPrefixLen > len(r.frame) {
			r.fail(fmt.Errorf("%w: truncated record prefix", ErrCorruptSnapshot))
			return
		}
		recLen := int(binary.LittleEndian.Uint32(r.frame[r.pos : r.pos+recordPrefixLen]))
		if r.pos+recordPrefixLen+recLen > len(r.frame) {
			r.fail(fmt.Errorf("%w: record overruns frame payload", ErrCorruptSnapshot))
			return
		}
		if len(records) > 0 && used+recordPrefixLen+recLen > r.maxBatchBytes {
			break
		}
		record, err := r.serde.Deserialize(r.frame[r.pos+recordPrefixLen : r.pos+recordPrefixLen+recLen])
		if err != nil {
			r.fail(fmt.Errorf("%w: %v", ErrCorruptSnapshot, err))
			return
		}
		records = append(records, record)
		r.pos += recordPrefixLen + recLen
		used += recordPrefixLen + recLen
		r.remaining--
	}

	if r.remaining == 0 {
		if r.pos != len(r.frame) {
			r.fail(fmt.Errorf("%w: trailing bytes after last record", ErrCorruptSnapshot))
			return
		}
		r.releaseFrame()
	}

	r.staged = &Batch[T]{BaseOffset: r.nextOffset, Epoch: r.epoch, Records: records}
	r.nextOffset += uint64(len(records))
}

// nextFrame reads and CRC-checks the next frame header and payload. It
// returns false when the snapshot is exhausted or the reader failed.
func (r *Reader[T]) nextFrame() bool {
	var hdr [frameHeaderLen]byte
	if _, err := io.ReadFull(r.raw, hdr[:]); err != nil {
		if err == io.EOF {
			r.done = true
			r.releaseFrame()
			return false
		}
		r.fail(fmt.Errorf("%w: truncated frame header: %v", ErrCorruptSnapshot, err))
		return false
	}
	h := parseFrameHeader(hdr[:])

	buf := r.pool.Get(int(h.payloadLen))
	buf = buf[:h.payloadLen]
	if _, err := io.ReadFull(r.raw, buf); err != nil {
		r.pool.Put(buf)
		r.fail(fmt.Errorf("%w: truncated frame payload: %v", ErrCorruptSnapshot, err))
		return false
	}
	if crc := crc32.ChecksumIEEE(buf); crc != h.crc {
		r.pool.Put(buf)
		r.fail(fmt.Errorf("%w: frame crc mismatch at offset %d", ErrCorruptSnapshot, h.baseOffset))
		return false
	}

	r.frame = buf
	r.pos = 0
	r.remaining = h.count
	r.nextOffset = h.baseOffset
	r.epoch = h.epoch
	return true
}

func (r *Reader[T]) fail(err error) {
	r.err = err
	r.releaseFrame()
}

func (r *Reader[T]) releaseFrame() {
	if r.frame != nil {
		r.pool.Put(r.frame)
		r.frame = nil
	}
	r.pos = 0
	r.remaining = 0
}
