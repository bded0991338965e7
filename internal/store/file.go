package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/coreos/etcd/pkg/fileutil"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/granitekv/snaplog/internal/stats"
	"github.com/granitekv/snaplog/pkg/snapshot"
)

const (
	snapSuffix = ".snap"
	partSuffix = ".snap.part"
)

// FileStore keeps each frozen snapshot as a single file named
// <endOffset>-<epoch>.snap. In-progress writers stage to a .snap.part
// file; Freeze fsyncs the staged file, renames it into place and fsyncs
// the directory, so a snapshot is either fully present or absent across
// crashes. Readers consult only the in-memory frozen index, never the
// directory, which keeps publish atomic with respect to concurrent reads.
type FileStore struct {
	dir     string
	lg      *zap.SugaredLogger
	metrics stats.Client
	writers *semaphore.Weighted

	mu     sync.Mutex
	frozen map[snapshot.SnapshotID]int64
	open   map[snapshot.SnapshotID]bool
}

var _ snapshot.Store = (*FileStore)(nil)

func NewFileStore(opts snapshot.Options) (*FileStore, error) {
	dir := opts.DataDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	fs := &FileStore{
		dir:     dir,
		lg:      opts.Logger(),
		metrics: stats.NewClient(opts.StatsDAddr(), stats.NewTag("backend", "file")),
		writers: semaphore.NewWeighted(opts.MaxOpenWriters()),
		frozen:  make(map[snapshot.SnapshotID]int64),
		open:    make(map[snapshot.SnapshotID]bool),
	}
	if err := fs.recover(); err != nil {
		return nil, err
	}
	return fs, nil
}

// recover rebuilds the frozen index from the directory and removes
// partial files orphaned by a crash mid-write.
func (fs *FileStore) recover() error {
	dir, err := os.Open(fs.dir)
	if err != nil {
		return err
	}
	defer dir.Close()
	names, err := dir.Readdirnames(-1)
	if err != nil {
		return err
	}
	for _, name := range names {
		switch {
		case strings.HasSuffix(name, partSuffix):
			fs.lg.Infow("removing orphaned partial snapshot", "file", name)
			if err := os.Remove(filepath.Join(fs.dir, name)); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove orphaned partial snapshot %s: %v", name, err)
			}
		case strings.HasSuffix(name, snapSuffix):
			id, err := snapshot.ParseSnapshotID(strings.TrimSuffix(name, snapSuffix))
			if err != nil {
				fs.lg.Warnw("renaming unparseable snapshot file", "file", name, "error", err)
				renameBroken(filepath.Join(fs.dir, name), fs.lg)
				continue
			}
			info, err := os.Stat(filepath.Join(fs.dir, name))
			if err != nil {
				return err
			}
			fs.frozen[id] = info.Size()
		default:
			fs.lg.Warnw("skipped unexpected non snapshot file", "file", name)
		}
	}
	return nil
}

func renameBroken(path string, lg *zap.SugaredLogger) {
	brokenPath := path + ".broken"
	if err := os.Rename(path, brokenPath); err != nil {
		lg.Warnw("cannot rename broken snapshot file", "from", path, "to", brokenPath, "error", err)
	}
}

// Create starts a writer for id. A second creation for an id with an open
// writer, or for an already frozen id, is rejected immediately with
// ErrSnapshotExists. The context bounds the wait for a writer slot; its
// expiry surfaces as ErrTimeout.
func (fs *FileStore) Create(ctx context.Context, id snapshot.SnapshotID) (snapshot.RawSnapshotWriter, error) {
	if err := fs.writers.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %v", snapshot.ErrTimeout, err)
	}

	fs.mu.Lock()
	if fs.open[id] {
		fs.mu.Unlock()
		fs.writers.Release(1)
		return nil, fmt.Errorf("%w: writer already open for %s", snapshot.ErrSnapshotExists, id)
	}
	if _, frozen := fs.frozen[id]; frozen {
		fs.mu.Unlock()
		fs.writers.Release(1)
		return nil, fmt.Errorf("%w: %s", snapshot.ErrSnapshotExists, id)
	}
	fs.open[id] = true
	fs.mu.Unlock()

	f, err := os.OpenFile(fs.partPath(id), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0666)
	if err != nil {
		fs.release(id)
		return nil, err
	}
	fs.metrics.GaugeDelta("open_writers", 1)
	fs.lg.Infow("snapshot writer opened", "id", id.String())
	return &fileWriter{store: fs, id: id, f: f}, nil
}

func (fs *FileStore) Open(id snapshot.SnapshotID) (snapshot.RawSnapshotReader, error) {
	fs.mu.Lock()
	size, ok := fs.frozen[id]
	fs.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", snapshot.ErrSnapshotNotFound, id)
	}
	f, err := os.Open(fs.snapPath(id))
	if err != nil {
		return nil, err
	}
	fs.metrics.Incr("read", 1)
	return &fileReader{id: id, size: size, f: f}, nil
}

func (fs *FileStore) List() []snapshot.SnapshotID {
	fs.mu.Lock()
	ids := make([]snapshot.SnapshotID, 0, len(fs.frozen))
	for id := range fs.frozen {
		ids = append(ids, id)
	}
	fs.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[j].Less(ids[i]) })
	return ids
}

func (fs *FileStore) Latest() (snapshot.SnapshotID, bool) {
	ids := fs.List()
	if len(ids) == 0 {
		return snapshot.SnapshotID{}, false
	}
	return ids[0], true
}

func (fs *FileStore) Delete(id snapshot.SnapshotID) error {
	fs.mu.Lock()
	if _, ok := fs.frozen[id]; !ok {
		fs.mu.Unlock()
		return fmt.Errorf("%w: %s", snapshot.ErrSnapshotNotFound, id)
	}
	delete(fs.frozen, id)
	fs.mu.Unlock()

	if err := os.Remove(fs.snapPath(id)); err != nil && !os.IsNotExist(err) {
		return err
	}
	fs.metrics.Incr("deleted", 1)
	fs.lg.Infow("snapshot deleted", "id", id.String())
	return nil
}

func (fs *FileStore) Close() error {
	return fs.metrics.Close()
}

func (fs *FileStore) snapPath(id snapshot.SnapshotID) string {
	return filepath.Join(fs.dir, id.String()+snapSuffix)
}

func (fs *FileStore) partPath(id snapshot.SnapshotID) string {
	return filepath.Join(fs.dir, id.String()+partSuffix)
}

// publish makes a frozen artifact discoverable and frees the writer slot.
func (fs *FileStore) publish(id snapshot.SnapshotID, size int64) {
	fs.mu.Lock()
	fs.frozen[id] = size
	delete(fs.open, id)
	fs.mu.Unlock()
	fs.writers.Release(1)
	fs.metrics.GaugeDelta("open_writers", -1)
}

// release frees the writer slot without publishing anything.
func (fs *FileStore) release(id snapshot.SnapshotID) {
	fs.mu.Lock()
	delete(fs.open, id)
	fs.mu.Unlock()
	fs.writers.Release(1)
}

type fileWriter struct {
	store *FileStore
	id    snapshot.SnapshotID

	mu    sync.Mutex
	f     *os.File
	size  int64
	state writerState
}

type writerState int

const (
	writerOpen writerState = iota
	writerFrozen
	writerAborted
)

var _ snapshot.RawSnapshotWriter = (*fileWriter)(nil)

func (w *fileWriter) SnapshotID() snapshot.SnapshotID {
	return w.id
}

func (w *fileWriter) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

func (w *fileWriter) Append(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != writerOpen {
		return snapshot.ErrInvalidState
	}
	n, err := w.f.Write(data)
	w.size += int64(n)
	if err != nil {
		return fmt.Errorf("snap: append to %s failed: %v", w.id, err)
	}
	return nil
}

// Freeze makes the staged bytes durable, then atomically renames the
// partial file into its final name and fsyncs the directory. Only once
// all of that succeeded is the id inserted into the frozen index. Any
// failure aborts the writer so no partial artifact survives.
func (w *fileWriter) Freeze() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != writerOpen {
		return snapshot.ErrInvalidState
	}

	start := w.store.metrics.StartTiming()
	if err := fileutil.Fsync(w.f); err != nil {
		w.abortLocked()
		return err
	}
	if err := w.f.Close(); err != nil {
		w.discardLocked(w.store.partPath(w.id))
		return err
	}
	if err := os.Rename(w.store.partPath(w.id), w.store.snapPath(w.id)); err != nil {
		w.discardLocked(w.store.partPath(w.id))
		return err
	}
	if err := syncDir(w.store.dir); err != nil {
		// The rename may not be durable yet; withdraw the artifact.
		w.discardLocked(w.store.snapPath(w.id))
		return err
	}

	w.state = writerFrozen
	w.store.publish(w.id, w.size)
	w.store.metrics.EndTiming("freeze_time", start)
	w.store.metrics.Incr("frozen", 1)
	w.store.lg.Infow("snapshot frozen", "id", w.id.String(), "bytes", w.size)
	return nil
}

// Close aborts the snapshot when Freeze was never invoked. Aborting is
// not an error; it is the documented way to discard an in-progress
// snapshot. Close is idempotent.
func (w *fileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == writerOpen {
		w.abortLocked()
	}
	return nil
}

func (w *fileWriter) abortLocked() {
	if err := w.f.Close(); err != nil {
		w.store.lg.Warnw("error closing aborted snapshot file", "id", w.id.String(), "error", err)
	}
	w.discardLocked(w.store.partPath(w.id))
}

// discardLocked removes whatever file the failed or aborted writer left
// behind and frees its slot. The staged file handle must already be
// closed.
func (w *fileWriter) discardLocked(path string) {
	w.state = writerAborted
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		w.store.lg.Errorw("failed to remove discarded snapshot file", "id", w.id.String(), "error", err)
	}
	w.store.release(w.id)
	w.store.metrics.GaugeDelta("open_writers", -1)
	w.store.metrics.Incr("aborted", 1)
	w.store.lg.Infow("snapshot aborted", "id", w.id.String())
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return fileutil.Fsync(d)
}

type fileReader struct {
	id   snapshot.SnapshotID
	size int64

	mu     sync.Mutex
	f      *os.File
	closed bool
}

var _ snapshot.RawSnapshotReader = (*fileReader)(nil)

func (r *fileReader) SnapshotID() snapshot.SnapshotID {
	return r.id
}

func (r *fileReader) Size() int64 {
	return r.size
}

func (r *fileReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, snapshot.ErrInvalidState
	}
	return r.f.Read(p)
}

func (r *fileReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.f.Close()
}
