package snapshot

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	BackendFile   = "file"
	BackendBadger = "badger"

	defaultMaxBatchBytes  = 8 * 1024 * 1024
	defaultPoolBufferSize = 8 * 1024 * 1024
	defaultMaxOpenWriters = 4
	// defaultMaxSnapshots is the number of frozen snapshots retained per
	// store before the oldest ones become eligible for trimming.
	defaultMaxSnapshots = 5
)

type Option func(*options) error

type Options interface {
	DataDir() string
	Backend() string
	MaxBatchBytes() int
	PoolBufferSize() int
	MaxOpenWriters() int64
	MaxSnapshots() uint
	StatsDAddr() string
	Logger() *zap.SugaredLogger
}

type options struct {
	dataDir        string
	backend        string
	maxBatchBytes  int
	poolBufferSize int
	maxOpenWriters int64
	maxSnapshots   int
	statsdAddr     string
	logger         *zap.SugaredLogger
}

var opts options

func init() {
	flag.StringVar(&opts.dataDir, "snaplog-data-dir", "/tmp/snaplog", "Dir (or badger path) for storing snapshot artifacts")
	flag.StringVar(&opts.backend, "snaplog-backend", BackendFile, "Snapshot storage backend (file or badger)")
	flag.IntVar(&opts.maxBatchBytes, "snaplog-max-batch-bytes", defaultMaxBatchBytes, "Maximum serialized bytes per batch handed to snapshot readers")
	flag.IntVar(&opts.poolBufferSize, "snaplog-pool-buffer-size", defaultPoolBufferSize, "Largest buffer capacity retained by the shared buffer pool")
	flag.Int64Var(&opts.maxOpenWriters, "snaplog-max-open-writers", defaultMaxOpenWriters, "Maximum number of concurrently open snapshot writers")
	flag.IntVar(&opts.maxSnapshots, "snaplog-max-snapshots", defaultMaxSnapshots, "Maximum number of frozen snapshots to retain (0 is unlimited)")
	flag.StringVar(&opts.statsdAddr, "snaplog-statsd-addr", "", "StatsD server address (host:port) for relaying snapshot metrics")
}

func OptionsFromFlags() []Option {
	return []Option{
		DataDir(opts.dataDir),
		Backend(opts.backend),
		MaxBatchBytes(opts.maxBatchBytes),
		PoolBufferSize(opts.poolBufferSize),
		MaxOpenWriters(opts.maxOpenWriters),
		MaxSnapshots(opts.maxSnapshots),
		StatsDAddr(opts.statsdAddr),
	}
}

func NewOptions(setters ...Option) (Options, error) {
	options := &options{}
	for _, setter := range setters {
		if err := setter(options); err != nil {
			return nil, err
		}
	}
	return options, nil
}

func DataDir(dir string) Option {
	return func(opts *options) error {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			return errors.New("snapshot data dir must not be empty")
		}
		opts.dataDir = dir
		return nil
	}
}

func Backend(name string) Option {
	return func(opts *options) error {
		name = strings.TrimSpace(name)
		if name != BackendFile && name != BackendBadger {
			return fmt.Errorf("unknown snapshot backend %q", name)
		}
		opts.backend = name
		return nil
	}
}

func MaxBatchBytes(size int) Option {
	return func(opts *options) error {
		if size < 1 {
			return errors.New("maxBatchBytes cannot be < 1")
		}
		opts.maxBatchBytes = size
		return nil
	}
}

func PoolBufferSize(size int) Option {
	return func(opts *options) error {
		if size < 1 {
			return errors.New("poolBufferSize cannot be < 1")
		}
		opts.poolBufferSize = size
		return nil
	}
}

func MaxOpenWriters(count int64) Option {
	return func(opts *options) error {
		if count < 1 {
			return errors.New("maxOpenWriters cannot be < 1")
		}
		opts.maxOpenWriters = count
		return nil
	}
}

func MaxSnapshots(count int) Option {
	return func(opts *options) error {
		if count < 0 {
			return errors.New("maxSnapshots cannot be negative")
		}
		opts.maxSnapshots = count
		return nil
	}
}

func StatsDAddr(statsdAddr string) Option {
	return func(opts *options) error {
		if statsdAddr = strings.TrimSpace(statsdAddr); statsdAddr != "" {
			opts.statsdAddr = statsdAddr
		}
		return nil
	}
}

func Logger(logger *zap.SugaredLogger) Option {
	return func(opts *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		opts.logger = logger
		return nil
	}
}

func (this *options) DataDir() string {
	return this.dataDir
}

func (this *options) Backend() string {
	if this.backend == "" {
		return BackendFile
	}
	return this.backend
}

func (this *options) MaxBatchBytes() int {
	if this.maxBatchBytes == 0 {
		return defaultMaxBatchBytes
	}
	return this.maxBatchBytes
}

func (this *options) PoolBufferSize() int {
	if this.poolBufferSize == 0 {
		return defaultPoolBufferSize
	}
	return this.poolBufferSize
}

func (this *options) MaxOpenWriters() int64 {
	if this.maxOpenWriters == 0 {
		return defaultMaxOpenWriters
	}
	return this.maxOpenWriters
}

func (this *options) MaxSnapshots() uint {
	if this.maxSnapshots == 0 {
		return defaultMaxSnapshots
	}
	return uint(this.maxSnapshots)
}

func (this *options) StatsDAddr() string {
	return this.statsdAddr
}

func (this *options) Logger() *zap.SugaredLogger {
	if this.logger == nil {
		return zap.NewNop().Sugar()
	}
	return this.logger
}
