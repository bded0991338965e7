package snapshot

import (
	"testing"

	"go.uber.org/zap"
)

func assertError(t *testing.T, name string, opt Option) {
	t.Helper()
	if _, err := NewOptions(opt); err == nil {
		t.Errorf("%s: expected error, got none", name)
	}
}

func TestInvalidOptions(t *testing.T) {
	assertError(t, "empty data dir", DataDir("  "))
	assertError(t, "unknown backend", Backend("lsm"))
	assertError(t, "zero maxBatchBytes", MaxBatchBytes(0))
	assertError(t, "negative maxBatchBytes", MaxBatchBytes(-1))
	assertError(t, "zero poolBufferSize", PoolBufferSize(0))
	assertError(t, "zero maxOpenWriters", MaxOpenWriters(0))
	assertError(t, "negative maxSnapshots", MaxSnapshots(-1))
	assertError(t, "nil logger", Logger(nil))
}

func TestValidOptions(t *testing.T) {
	lg := zap.NewNop().Sugar()
	opts, err := NewOptions(
		DataDir("/tmp/snaplog-test"),
		Backend(BackendBadger),
		MaxBatchBytes(1024),
		PoolBufferSize(2048),
		MaxOpenWriters(2),
		MaxSnapshots(3),
		StatsDAddr("localhost:8125"),
		Logger(lg),
	)
	if err != nil {
		t.Fatal(err)
	}
	if opts.DataDir() != "/tmp/snaplog-test" {
		t.Errorf("DataDir() = %q", opts.DataDir())
	}
	if opts.Backend() != BackendBadger {
		t.Errorf("Backend() = %q", opts.Backend())
	}
	if opts.MaxBatchBytes() != 1024 {
		t.Errorf("MaxBatchBytes() = %d", opts.MaxBatchBytes())
	}
	if opts.PoolBufferSize() != 2048 {
		t.Errorf("PoolBufferSize() = %d", opts.PoolBufferSize())
	}
	if opts.MaxOpenWriters() != 2 {
		t.Errorf("MaxOpenWriters() = %d", opts.MaxOpenWriters())
	}
	if opts.MaxSnapshots() != 3 {
		t.Errorf("MaxSnapshots() = %d", opts.MaxSnapshots())
	}
	if opts.StatsDAddr() != "localhost:8125" {
		t.Errorf("StatsDAddr() = %q", opts.StatsDAddr())
	}
	if opts.Logger() != lg {
		t.Error("Logger() did not return the configured logger")
	}
}

func TestOptionDefaults(t *testing.T) {
	opts, err := NewOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Backend() != BackendFile {
		t.Errorf("Backend() = %q, want %q", opts.Backend(), BackendFile)
	}
	if opts.MaxBatchBytes() != defaultMaxBatchBytes {
		t.Errorf("MaxBatchBytes() = %d, want %d", opts.MaxBatchBytes(), defaultMaxBatchBytes)
	}
	if opts.PoolBufferSize() != defaultPoolBufferSize {
		t.Errorf("PoolBufferSize() = %d, want %d", opts.PoolBufferSize(), defaultPoolBufferSize)
	}
	if opts.MaxOpenWriters() != defaultMaxOpenWriters {
		t.Errorf("MaxOpenWriters() = %d, want %d", opts.MaxOpenWriters(), defaultMaxOpenWriters)
	}
	if opts.MaxSnapshots() != defaultMaxSnapshots {
		t.Errorf("MaxSnapshots() = %d, want %d", opts.MaxSnapshots(), defaultMaxSnapshots)
	}
	if opts.Logger() == nil {
		t.Error("Logger() = nil, want noop logger")
	}
}
