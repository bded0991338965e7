package snapshot

import (
	"context"
	"io"
)

// RawSnapshotWriter is an untyped append-only sink for one snapshot id.
// A writer starts Open and ends either Frozen (via Freeze) or Aborted
// (via Close without a prior Freeze). Exactly one writer may be Open for
// a given id; the store enforces this at creation time.
type RawSnapshotWriter interface {
	// SnapshotID returns the id this writer was created for.
	SnapshotID() SnapshotID

	// Size returns the number of bytes appended so far.
	Size() int64

	// Append adds data to the private, not yet visible artifact. It
	// returns ErrInvalidState once the writer is Frozen or Aborted.
	Append(data []byte) error

	// Freeze atomically publishes the artifact. Only after Freeze returns
	// successfully does the snapshot become discoverable via Open on the
	// store. Repeated calls return ErrInvalidState.
	Freeze() error

	// Close aborts the snapshot when Freeze was never invoked: the staged
	// bytes are discarded and never become visible. After a successful
	// Freeze, Close is a no-op. Close is idempotent.
	io.Closer
}

// RawSnapshotReader is a forward-only cursor over a frozen artifact.
// Independent readers over the same id observe identical content and do
// not affect each other or any writer.
type RawSnapshotReader interface {
	// SnapshotID returns the id of the frozen snapshot being read.
	SnapshotID() SnapshotID

	// Size returns the total byte size of the frozen artifact.
	Size() int64

	io.Reader
	io.Closer
}

// Store is the durable home of raw snapshot artifacts. Implementations
// must guarantee that an artifact is discoverable via Open only after its
// writer's Freeze completed (atomic publish), and that aborted writers
// leave no trace.
type Store interface {
	io.Closer

	// Create starts a writer for id. It fails with ErrSnapshotExists when
	// a frozen artifact or an open writer already exists for the id (a
	// second concurrent creation is rejected immediately, never queued).
	// The context bounds the wait for a writer slot; expiry surfaces as
	// ErrTimeout.
	Create(ctx context.Context, id SnapshotID) (RawSnapshotWriter, error)

	// Open returns a reader over the frozen artifact for id, or
	// ErrSnapshotNotFound when none exists. Never-created and aborted
	// snapshots are indistinguishable.
	Open(id SnapshotID) (RawSnapshotReader, error)

	// List returns the ids of all frozen snapshots, newest first.
	List() []SnapshotID

	// Latest returns the id of the most recent frozen snapshot.
	Latest() (SnapshotID, bool)

	// Delete removes a frozen artifact. The replicated log is the sole
	// authority for garbage collection; this is its hook.
	Delete(id SnapshotID) error
}
