package api

import (
	internal_store "github.com/granitekv/snaplog/internal/store"
	"github.com/granitekv/snaplog/pkg/replog"
	"github.com/granitekv/snaplog/pkg/snapshot"
)

// NewSnapshotStore creates the configured snapshot store backend.
func NewSnapshotStore(clientOpts ...snapshot.Option) (snapshot.Store, error) {
	options, err := snapshot.NewOptions(clientOpts...)
	if err != nil {
		return nil, err
	}
	switch options.Backend() {
	case snapshot.BackendBadger:
		return internal_store.NewBadgerStore(options)
	default:
		return internal_store.NewFileStore(options)
	}
}

// NewManager wires a snapshot store to the given log view, yielding the
// snapshot surface a replicated log embeds.
func NewManager(view replog.LogView, clientOpts ...snapshot.Option) (*replog.Manager, snapshot.Store, error) {
	options, err := snapshot.NewOptions(clientOpts...)
	if err != nil {
		return nil, nil, err
	}
	store, err := NewSnapshotStore(clientOpts...)
	if err != nil {
		return nil, nil, err
	}
	return replog.NewManager(view, store, options), store, nil
}
