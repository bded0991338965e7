package api

import (
	"context"
	"errors"
	"testing"

	internal_store "github.com/granitekv/snaplog/internal/store"
	"github.com/granitekv/snaplog/pkg/snapshot"
)

func TestNewSnapshotStoreBackends(t *testing.T) {
	fileStore, err := NewSnapshotStore(snapshot.DataDir(t.TempDir()), snapshot.Backend(snapshot.BackendFile))
	if err != nil {
		t.Fatal(err)
	}
	defer fileStore.Close()
	if _, ok := fileStore.(*internal_store.FileStore); !ok {
		t.Errorf("file backend store = %T, want *store.FileStore", fileStore)
	}

	badgerStore, err := NewSnapshotStore(snapshot.DataDir(t.TempDir()), snapshot.Backend(snapshot.BackendBadger))
	if err != nil {
		t.Fatal(err)
	}
	defer badgerStore.Close()
	if _, ok := badgerStore.(*internal_store.BadgerStore); !ok {
		t.Errorf("badger backend store = %T, want *store.BadgerStore", badgerStore)
	}
}

func TestNewSnapshotStoreRejectsBadOptions(t *testing.T) {
	if _, err := NewSnapshotStore(snapshot.Backend("lsm")); err == nil {
		t.Error("NewSnapshotStore() with unknown backend succeeded, want error")
	}
}

type fixedView struct {
	highWatermark uint64
	epoch         uint32
}

func (v fixedView) HighWatermark() uint64 {
	return v.highWatermark
}

func (v fixedView) EpochAt(endOffset uint64) (uint32, bool) {
	return v.epoch, endOffset <= v.highWatermark
}

func TestNewManagerEndToEnd(t *testing.T) {
	manager, store, err := NewManager(fixedView{highWatermark: 9, epoch: 3}, snapshot.DataDir(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	raw, err := manager.CreateSnapshot(context.Background(), 9, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := raw.Append([]byte("payload")); err != nil {
		t.Fatal(err)
	}
	if err := raw.Freeze(); err != nil {
		t.Fatal(err)
	}

	if _, found := manager.ReadSnapshot(snapshot.SnapshotID{EndOffset: 9, Epoch: 3}); !found {
		t.Error("ReadSnapshot() found = false for frozen snapshot")
	}
	if _, err := manager.CreateSnapshot(context.Background(), 10, 3); !errors.Is(err, snapshot.ErrInvalidSnapshotID) {
		t.Errorf("CreateSnapshot() beyond high watermark err = %v, want %v", err, snapshot.ErrInvalidSnapshotID)
	}
}
