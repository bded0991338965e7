package snapshot

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/granitekv/snaplog/pkg/bufpool"
)

// Writer serializes typed batches into a raw snapshot writer. It is a
// scoped resource: Close aborts the underlying artifact unless Freeze was
// invoked first, so no exit path leaves a half-written snapshot
// discoverable.
type Writer[T any] struct {
	id     SnapshotID
	raw    RawSnapshotWriter
	serde  Serializer[T]
	pool   *bufpool.Pool
	frozen bool
}

// NewWriter binds a typed writer to one raw writer and the snapshot id the
// caller intends to publish. The id is re-validated on Freeze.
func NewWriter[T any](id SnapshotID, raw RawSnapshotWriter, serde Serializer[T], pool *bufpool.Pool) *Writer[T] {
	return &Writer[T]{id: id, raw: raw, serde: serde, pool: pool}
}

// SnapshotID returns the id this writer was created for.
func (w *Writer[T]) SnapshotID() SnapshotID {
	return w.id
}

// Size returns the number of bytes appended to the raw artifact so far.
func (w *Writer[T]) Size() int64 {
	return w.raw.Size()
}

// Append frames and serializes one batch into the raw writer. Empty
// batches are a no-op. Append fails with ErrInvalidState once the writer
// is frozen or aborted, and with ErrSerialization when the serializer
// rejects a record.
func (w *Writer[T]) Append(batch Batch[T]) error {
	if w.frozen {
		return ErrInvalidState
	}
	if batch.Empty() {
		return nil
	}

	buf := w.pool.Get(frameHeaderLen + len(batch.Records)*recordPrefixLen)
	defer w.pool.Put(buf)

	buf = buf[:frameHeaderLen]
	for _, record := range batch.Records {
		data, err := w.serde.Serialize(record)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSerialization, err)
		}
		var prefix [recordPrefixLen]byte
		binary.LittleEndian.PutUint32(prefix[:], uint32(len(data)))
		buf = append(buf, prefix[:]...)
		buf = append(buf, data...)
	}

	payload := buf[frameHeaderLen:]
	putFrameHeader(buf, frameHeader{
		baseOffset: batch.BaseOffset,
		epoch:      batch.Epoch,
		count:      uint32(len(batch.Records)),
		payloadLen: uint32(len(payload)),
		crc:        crc32.ChecksumIEEE(payload),
	})
	return w.raw.Append(buf)
}

// Freeze publishes the snapshot through the raw writer. A mismatch between
// the declared id and the raw writer's id is a programming-contract
// violation and panics rather than returning an error.
func (w *Writer[T]) Freeze() error {
	if got := w.raw.SnapshotID(); got != w.id {
		panic(fmt.Sprintf("snap: writer declared id %s but raw writer holds %s", w.id, got))
	}
	if err := w.raw.Freeze(); err != nil {
		return err
	}
	w.frozen = true
	return nil
}

// Close releases the writer. When Freeze was never invoked the underlying
// artifact is aborted and leaves no trace. Close is idempotent.
func (w *Writer[T]) Close() error {
	return w.raw.Close()
}
