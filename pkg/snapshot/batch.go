package snapshot

// Batch is an ordered, bounded run of records sharing a leader epoch.
// BaseOffset is the log offset of the first record; subsequent records
// occupy consecutive offsets. A snapshot's logical content is the
// concatenation, in append order, of all batches written to it.
type Batch[T any] struct {
	BaseOffset uint64
	Epoch      uint32
	Records    []T
}

func BatchOf[T any](baseOffset uint64, epoch uint32, records []T) Batch[T] {
	return Batch[T]{BaseOffset: baseOffset, Epoch: epoch, Records: records}
}

// LastOffset returns the offset of the final record in the batch. Only
// meaningful for non-empty batches.
func (b Batch[T]) LastOffset() uint64 {
	return b.BaseOffset + uint64(len(b.Records)) - 1
}

func (b Batch[T]) Empty() bool {
	return len(b.Records) == 0
}
