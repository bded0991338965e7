package snapshot

import "errors"

var (
	// ErrInvalidState is returned when a lifecycle operation is not legal
	// in the writer's or reader's current state, e.g. append after freeze.
	ErrInvalidState = errors.New("snap: operation not valid in current state")

	// ErrInvalidSnapshotID is returned when the requested end offset or
	// epoch is inconsistent with the log's committed history.
	ErrInvalidSnapshotID = errors.New("snap: snapshot id inconsistent with committed log history")

	// ErrSnapshotExists is returned by Create when a frozen artifact or an
	// open writer already exists for the id.
	ErrSnapshotExists = errors.New("snap: snapshot already exists for id")

	// ErrSnapshotNotFound is returned when no frozen artifact exists for
	// the id. Aborted and never-created snapshots are indistinguishable.
	ErrSnapshotNotFound = errors.New("snap: no frozen snapshot for id")

	// ErrSerialization is returned when the record serializer rejects a
	// record while appending a batch.
	ErrSerialization = errors.New("snap: record serialization failed")

	// ErrCorruptSnapshot is returned when frozen snapshot bytes fail CRC
	// or structural checks. The reader instance is unusable afterwards.
	ErrCorruptSnapshot = errors.New("snap: snapshot data corrupted")

	// ErrEndOfSequence is returned by Next once the reader is exhausted.
	ErrEndOfSequence = errors.New("snap: snapshot reader exhausted")

	// ErrTimeout is returned when snapshot creation exceeded the caller's
	// wait bound. The caller may retry later.
	ErrTimeout = errors.New("snap: timed out creating snapshot")
)
