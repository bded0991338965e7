// Package replog defines the surface this library shares with the
// replicated log: the log asks for writers at committed positions, hands
// out readers over frozen artifacts, and owns garbage collection. The
// consensus layer supplies a LogView; everything else about the log
// (election, transport, segment format) stays outside this module.
package replog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/granitekv/snaplog/pkg/snapshot"
)

// LogView is the slice of replicated-log state snapshot creation must be
// validated against.
type LogView interface {
	// HighWatermark returns the highest offset known committed across a
	// quorum. Snapshot end offsets beyond it are rejected.
	HighWatermark() uint64

	// EpochAt returns the leader epoch the log records for position
	// endOffset, i.e. the epoch of the record at endOffset-1. ok is
	// false when the position is outside the log's known history.
	EpochAt(endOffset uint64) (epoch uint32, ok bool)
}

// ReplicatedLog is the snapshot surface the consensus layer consumes.
type ReplicatedLog interface {
	// CreateSnapshot validates (endOffset, epoch) against the committed
	// history and returns a writer bound to a fresh private artifact.
	// The context bounds how long the caller is willing to wait for a
	// writer slot; expiry surfaces as snapshot.ErrTimeout and is safe to
	// retry.
	CreateSnapshot(ctx context.Context, endOffset uint64, epoch uint32) (snapshot.RawSnapshotWriter, error)

	// ReadSnapshot returns a reader over the frozen artifact for id.
	// found is false both for never-created and aborted snapshots.
	ReadSnapshot(id snapshot.SnapshotID) (reader snapshot.RawSnapshotReader, found bool)
}

// Manager implements ReplicatedLog over a snapshot store and a log view.
type Manager struct {
	view         LogView
	store        snapshot.Store
	maxSnapshots uint
	lg           *zap.SugaredLogger
}

var _ ReplicatedLog = (*Manager)(nil)

func NewManager(view LogView, store snapshot.Store, opts snapshot.Options) *Manager {
	return &Manager{
		view:         view,
		store:        store,
		maxSnapshots: opts.MaxSnapshots(),
		lg:           opts.Logger(),
	}
}

// Store exposes the underlying snapshot store, through which the log
// performs listing and garbage collection.
func (m *Manager) Store() snapshot.Store {
	return m.store
}

func (m *Manager) CreateSnapshot(ctx context.Context, endOffset uint64, epoch uint32) (snapshot.RawSnapshotWriter, error) {
	if hw := m.view.HighWatermark(); endOffset > hw {
		return nil, fmt.Errorf("%w: end offset %d is beyond the high watermark %d", snapshot.ErrInvalidSnapshotID, endOffset, hw)
	}
	logEpoch, ok := m.view.EpochAt(endOffset)
	if !ok {
		return nil, fmt.Errorf("%w: no epoch recorded at offset %d", snapshot.ErrInvalidSnapshotID, endOffset)
	}
	if logEpoch != epoch {
		return nil, fmt.Errorf("%w: epoch %d does not match log epoch %d at offset %d", snapshot.ErrInvalidSnapshotID, epoch, logEpoch, endOffset)
	}
	return m.store.Create(ctx, snapshot.SnapshotID{EndOffset: endOffset, Epoch: epoch})
}

func (m *Manager) ReadSnapshot(id snapshot.SnapshotID) (snapshot.RawSnapshotReader, bool) {
	reader, err := m.store.Open(id)
	if err != nil {
		if !errors.Is(err, snapshot.ErrSnapshotNotFound) {
			m.lg.Errorw("failed to open frozen snapshot", "id", id.String(), "error", err)
		}
		return nil, false
	}
	return reader, true
}

// Trim deletes the oldest frozen snapshots beyond the retention limit.
// The log calls this after publishing a newer snapshot; in-progress
// writers are unaffected.
func (m *Manager) Trim() error {
	if m.maxSnapshots == 0 {
		return nil
	}
	ids := m.store.List()
	for i := int(m.maxSnapshots); i < len(ids); i++ {
		if err := m.store.Delete(ids[i]); err != nil {
			return err
		}
		m.lg.Infow("trimmed superseded snapshot", "id", ids[i].String())
	}
	return nil
}
