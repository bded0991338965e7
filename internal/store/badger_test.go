package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/granitekv/snaplog/pkg/snapshot"
)

func badgerStoreAt(t *testing.T, dir string, setters ...snapshot.Option) *BadgerStore {
	t.Helper()
	opts, err := snapshot.NewOptions(append([]snapshot.Option{snapshot.DataDir(dir)}, setters...)...)
	if err != nil {
		t.Fatal(err)
	}
	bs, err := NewBadgerStore(opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { bs.Close() })
	return bs
}

func TestBadgerStoreRoundTrip(t *testing.T) {
	bs := badgerStoreAt(t, t.TempDir())
	id := snapshot.SnapshotID{EndOffset: 9, Epoch: 3}
	written := []snapshot.Batch[string]{
		snapshot.BatchOf(0, 3, []string{"value-0", "value-1", "value-2"}),
		snapshot.BatchOf(3, 3, []string{"value-3", "value-4", "value-5"}),
		snapshot.BatchOf(6, 3, []string{"value-6", "value-7", "value-8"}),
	}
	freezeStringSnapshot(t, bs, id, written)

	read := readStringSnapshot(t, bs, id)
	if !reflect.DeepEqual(read, written) {
		t.Errorf("read batches = %v, want %v", read, written)
	}
}

func TestBadgerStoreAbortLeavesNoTrace(t *testing.T) {
	bs := badgerStoreAt(t, t.TempDir())
	id := snapshot.SnapshotID{EndOffset: 5, Epoch: 1}

	raw, err := bs.Create(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if err := raw.Append([]byte("half written")); err != nil {
		t.Fatal(err)
	}
	if err := raw.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := bs.Open(id); !errors.Is(err, snapshot.ErrSnapshotNotFound) {
		t.Errorf("Open() after abort err = %v, want %v", err, snapshot.ErrSnapshotNotFound)
	}
	if ids := bs.List(); len(ids) != 0 {
		t.Errorf("List() after abort = %v, want empty", ids)
	}

	freezeStringSnapshot(t, bs, id, []snapshot.Batch[string]{snapshot.BatchOf(0, 1, []string{"retry"})})
	if _, err := bs.Open(id); err != nil {
		t.Errorf("Open() after retried freeze err = %v", err)
	}
}

func TestBadgerStoreRejectsDuplicateCreate(t *testing.T) {
	bs := badgerStoreAt(t, t.TempDir())
	id := snapshot.SnapshotID{EndOffset: 7, Epoch: 2}

	raw, err := bs.Create(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bs.Create(context.Background(), id); !errors.Is(err, snapshot.ErrSnapshotExists) {
		t.Errorf("Create() with open writer err = %v, want %v", err, snapshot.ErrSnapshotExists)
	}
	if err := raw.Freeze(); err != nil {
		t.Fatal(err)
	}
	if _, err := bs.Create(context.Background(), id); !errors.Is(err, snapshot.ErrSnapshotExists) {
		t.Errorf("Create() for frozen id err = %v, want %v", err, snapshot.ErrSnapshotExists)
	}
}

func TestBadgerStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	bs := badgerStoreAt(t, dir)
	frozen := snapshot.SnapshotID{EndOffset: 4, Epoch: 1}
	written := []snapshot.Batch[string]{snapshot.BatchOf(0, 1, []string{"kept-0", "kept-1"})}
	freezeStringSnapshot(t, bs, frozen, written)

	// an unfrozen writer must not be discoverable after restart either
	staged, err := bs.Create(context.Background(), snapshot.SnapshotID{EndOffset: 8, Epoch: 2})
	if err != nil {
		t.Fatal(err)
	}
	if err := staged.Append([]byte("partial")); err != nil {
		t.Fatal(err)
	}
	if err := bs.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := badgerStoreAt(t, dir)
	if ids := reopened.List(); !reflect.DeepEqual(ids, []snapshot.SnapshotID{frozen}) {
		t.Errorf("List() after reopen = %v, want %v", ids, []snapshot.SnapshotID{frozen})
	}
	read := readStringSnapshot(t, reopened, frozen)
	if !reflect.DeepEqual(read, written) {
		t.Errorf("read batches = %v, want %v", read, written)
	}
}

func TestBadgerStoreDelete(t *testing.T) {
	bs := badgerStoreAt(t, t.TempDir())
	id := snapshot.SnapshotID{EndOffset: 1, Epoch: 1}
	freezeStringSnapshot(t, bs, id, []snapshot.Batch[string]{snapshot.BatchOf(0, 1, []string{"x"})})

	if err := bs.Delete(id); err != nil {
		t.Fatal(err)
	}
	if _, err := bs.Open(id); !errors.Is(err, snapshot.ErrSnapshotNotFound) {
		t.Errorf("Open() after delete err = %v, want %v", err, snapshot.ErrSnapshotNotFound)
	}
	if err := bs.Delete(id); !errors.Is(err, snapshot.ErrSnapshotNotFound) {
		t.Errorf("second Delete() err = %v, want %v", err, snapshot.ErrSnapshotNotFound)
	}
}
