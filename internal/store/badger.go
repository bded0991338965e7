package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/granitekv/snaplog/internal/stats"
	"github.com/granitekv/snaplog/pkg/snapshot"
)

// BadgerStore keeps snapshot artifacts in a Badger keyspace for
// deployments without a dedicated snapshot directory. Writers stage
// chunks under data/<id>/<seq>; Freeze publishes by writing a single
// frozen/<id> marker in one transaction, which is the only key reader
// lookups consult. Aborts drop the staged chunk prefix, so an unfrozen
// snapshot is never discoverable.
type BadgerStore struct {
	db      *badger.DB
	lg      *zap.SugaredLogger
	metrics stats.Client
	writers *semaphore.Weighted

	mu     sync.Mutex
	frozen map[snapshot.SnapshotID]int64
	open   map[snapshot.SnapshotID]bool
}

var _ snapshot.Store = (*BadgerStore)(nil)

func NewBadgerStore(opts snapshot.Options) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(opts.DataDir()).WithLogger(nil))
	if err != nil {
		return nil, err
	}
	bs := &BadgerStore{
		db:      db,
		lg:      opts.Logger(),
		metrics: stats.NewClient(opts.StatsDAddr(), stats.NewTag("backend", "badger")),
		writers: semaphore.NewWeighted(opts.MaxOpenWriters()),
		frozen:  make(map[snapshot.SnapshotID]int64),
		open:    make(map[snapshot.SnapshotID]bool),
	}
	if err := bs.loadFrozenIndex(); err != nil {
		db.Close()
		return nil, err
	}
	if err := bs.dropOrphanedChunks(); err != nil {
		db.Close()
		return nil, err
	}
	return bs, nil
}

var (
	frozenPrefix = []byte("frozen/")
	dataPrefix   = []byte("data/")
)

func frozenKey(id snapshot.SnapshotID) []byte {
	return append([]byte("frozen/"), id.String()...)
}

func chunkPrefix(id snapshot.SnapshotID) []byte {
	return []byte("data/" + id.String() + "/")
}

func chunkKey(id snapshot.SnapshotID, seq uint64) []byte {
	return append(chunkPrefix(id), toSeqBytes(seq)...)
}

func toSeqBytes(seq uint64) []byte {
	// big-endian so lexicographic key order equals append order
	bts := make([]byte, 8)
	binary.BigEndian.PutUint64(bts, seq)
	return bts
}

func (bs *BadgerStore) loadFrozenIndex() error {
	return bs.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: true,
			Prefix:         frozenPrefix,
		})
		defer it.Close()
		for it.Seek(frozenPrefix); it.Valid(); it.Next() {
			item := it.Item()
			name := string(item.Key()[len(frozenPrefix):])
			id, err := snapshot.ParseSnapshotID(name)
			if err != nil {
				bs.lg.Warnw("skipped unparseable frozen snapshot marker", "key", string(item.Key()), "error", err)
				continue
			}
			sizeBts, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if len(sizeBts) != 8 {
				bs.lg.Warnw("skipped frozen snapshot marker with malformed size", "key", string(item.Key()))
				continue
			}
			bs.frozen[id] = int64(binary.BigEndian.Uint64(sizeBts))
		}
		return nil
	})
}

// dropOrphanedChunks removes staged chunks whose writer never froze,
// left behind by a crash mid-write.
func (bs *BadgerStore) dropOrphanedChunks() error {
	var orphans [][]byte
	err := bs.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: dataPrefix})
		defer it.Close()
		last := ""
		for it.Seek(dataPrefix); it.Valid(); it.Next() {
			key := it.Item().Key()
			rest := key[len(dataPrefix):]
			sep := bytes.IndexByte(rest, '/')
			if sep < 0 {
				continue
			}
			name := string(rest[:sep])
			if name == last {
				continue
			}
			last = name
			id, err := snapshot.ParseSnapshotID(name)
			if err != nil {
				bs.lg.Warnw("dropping chunks with unparseable snapshot name", "key", string(key), "error", err)
				orphans = append(orphans, append([]byte(nil), key[:len(dataPrefix)+sep+1]...))
				continue
			}
			if _, frozen := bs.frozen[id]; !frozen {
				bs.lg.Infow("dropping orphaned staged snapshot chunks", "id", id.String())
				orphans = append(orphans, append([]byte(nil), key[:len(dataPrefix)+sep+1]...))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, prefix := range orphans {
		if err := bs.db.DropPrefix(prefix); err != nil {
			return err
		}
	}
	return nil
}

func (bs *BadgerStore) Create(ctx context.Context, id snapshot.SnapshotID) (snapshot.RawSnapshotWriter, error) {
	if err := bs.writers.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %v", snapshot.ErrTimeout, err)
	}

	bs.mu.Lock()
	if bs.open[id] {
		bs.mu.Unlock()
		bs.writers.Release(1)
		return nil, fmt.Errorf("%w: writer already open for %s", snapshot.ErrSnapshotExists, id)
	}
	if _, frozen := bs.frozen[id]; frozen {
		bs.mu.Unlock()
		bs.writers.Release(1)
		return nil, fmt.Errorf("%w: %s", snapshot.ErrSnapshotExists, id)
	}
	bs.open[id] = true
	bs.mu.Unlock()

	bs.metrics.GaugeDelta("open_writers", 1)
	bs.lg.Infow("snapshot writer opened", "id", id.String())
	return &badgerWriter{store: bs, id: id}, nil
}

func (bs *BadgerStore) Open(id snapshot.SnapshotID) (snapshot.RawSnapshotReader, error) {
	bs.mu.Lock()
	size, ok := bs.frozen[id]
	bs.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", snapshot.ErrSnapshotNotFound, id)
	}

	txn := bs.db.NewTransaction(false)
	it := txn.NewIterator(badger.IteratorOptions{
		PrefetchValues: true,
		PrefetchSize:   10,
		Prefix:         chunkPrefix(id),
	})
	it.Seek(chunkPrefix(id))
	bs.metrics.Incr("read", 1)
	return &badgerReader{id: id, size: size, txn: txn, it: it}, nil
}

func (bs *BadgerStore) List() []snapshot.SnapshotID {
	bs.mu.Lock()
	ids := make([]snapshot.SnapshotID, 0, len(bs.frozen))
	for id := range bs.frozen {
		ids = append(ids, id)
	}
	bs.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[j].Less(ids[i]) })
	return ids
}

func (bs *BadgerStore) Latest() (snapshot.SnapshotID, bool) {
	ids := bs.List()
	if len(ids) == 0 {
		return snapshot.SnapshotID{}, false
	}
	return ids[0], true
}

func (bs *BadgerStore) Delete(id snapshot.SnapshotID) error {
	bs.mu.Lock()
	if _, ok := bs.frozen[id]; !ok {
		bs.mu.Unlock()
		return fmt.Errorf("%w: %s", snapshot.ErrSnapshotNotFound, id)
	}
	delete(bs.frozen, id)
	bs.mu.Unlock()

	if err := bs.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(frozenKey(id))
	}); err != nil {
		return err
	}
	if err := bs.db.DropPrefix(chunkPrefix(id)); err != nil {
		return err
	}
	bs.metrics.Incr("deleted", 1)
	bs.lg.Infow("snapshot deleted", "id", id.String())
	return nil
}

func (bs *BadgerStore) Close() error {
	err := bs.db.Close()
	if cerr := bs.metrics.Close(); err == nil {
		err = cerr
	}
	return err
}

func (bs *BadgerStore) publish(id snapshot.SnapshotID, size int64) {
	bs.mu.Lock()
	bs.frozen[id] = size
	delete(bs.open, id)
	bs.mu.Unlock()
	bs.writers.Release(1)
	bs.metrics.GaugeDelta("open_writers", -1)
}

func (bs *BadgerStore) release(id snapshot.SnapshotID) {
	bs.mu.Lock()
	delete(bs.open, id)
	bs.mu.Unlock()
	bs.writers.Release(1)
	bs.metrics.GaugeDelta("open_writers", -1)
}

type badgerWriter struct {
	store *BadgerStore
	id    snapshot.SnapshotID

	mu    sync.Mutex
	seq   uint64
	size  int64
	state writerState
}

var _ snapshot.RawSnapshotWriter = (*badgerWriter)(nil)

func (w *badgerWriter) SnapshotID() snapshot.SnapshotID {
	return w.id
}

func (w *badgerWriter) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

func (w *badgerWriter) Append(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != writerOpen {
		return snapshot.ErrInvalidState
	}
	if len(data) == 0 {
		return nil
	}
	chunk := make([]byte, len(data))
	copy(chunk, data)
	err := w.store.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chunkKey(w.id, w.seq), chunk)
	})
	if err != nil {
		return fmt.Errorf("snap: append to %s failed: %v", w.id, err)
	}
	w.seq++
	w.size += int64(len(data))
	return nil
}

// Freeze publishes by writing the frozen marker in a single transaction.
// Readers look up only the marker, so the artifact flips from invisible
// to fully visible in one atomic step.
func (w *badgerWriter) Freeze() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != writerOpen {
		return snapshot.ErrInvalidState
	}

	start := w.store.metrics.StartTiming()
	sizeBts := make([]byte, 8)
	binary.BigEndian.PutUint64(sizeBts, uint64(w.size))
	if err := w.store.db.Update(func(txn *badger.Txn) error {
		return txn.Set(frozenKey(w.id), sizeBts)
	}); err != nil {
		w.abortLocked()
		return err
	}
	if err := w.store.db.Sync(); err != nil {
		w.store.lg.Warnw("error syncing badger after freeze", "id", w.id.String(), "error", err)
	}

	w.state = writerFrozen
	w.store.publish(w.id, w.size)
	w.store.metrics.EndTiming("freeze_time", start)
	w.store.metrics.Incr("frozen", 1)
	w.store.lg.Infow("snapshot frozen", "id", w.id.String(), "bytes", w.size)
	return nil
}

func (w *badgerWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == writerOpen {
		w.abortLocked()
	}
	return nil
}

func (w *badgerWriter) abortLocked() {
	w.state = writerAborted
	if err := w.store.db.DropPrefix(chunkPrefix(w.id)); err != nil {
		w.store.lg.Errorw("failed to drop aborted snapshot chunks", "id", w.id.String(), "error", err)
	}
	w.store.release(w.id)
	w.store.metrics.Incr("aborted", 1)
	w.store.lg.Infow("snapshot aborted", "id", w.id.String())
}

type badgerReader struct {
	id   snapshot.SnapshotID
	size int64

	mu     sync.Mutex
	txn    *badger.Txn
	it     *badger.Iterator
	chunk  []byte
	pos    int
	closed bool
}

var _ snapshot.RawSnapshotReader = (*badgerReader)(nil)

func (r *badgerReader) SnapshotID() snapshot.SnapshotID {
	return r.id
}

func (r *badgerReader) Size() int64 {
	return r.size
}

func (r *badgerReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, snapshot.ErrInvalidState
	}
	for r.pos >= len(r.chunk) {
		if !r.it.Valid() {
			return 0, io.EOF
		}
		chunk, err := r.it.Item().ValueCopy(nil)
		if err != nil {
			return 0, err
		}
		r.it.Next()
		r.chunk = chunk
		r.pos = 0
	}
	n := copy(p, r.chunk[r.pos:])
	r.pos += n
	return n, nil
}

func (r *badgerReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.it.Close()
	r.txn.Discard()
	return nil
}
