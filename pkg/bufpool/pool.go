// Package bufpool provides a shared pool of reusable byte buffers for
// snapshot serialization and deserialization scratch space. The pool is an
// explicit handle passed to every component that needs it, never a hidden
// global.
package bufpool

import "sync"

const (
	defaultMaxRetain = 8 * 1024 * 1024
	maxFreeBuffers   = 16
)

// Pool is a thread-safe free list of byte buffers. Buffers handed out by
// Get are exclusively owned by the acquirer until returned via Put.
// Returned buffers are length-reset but not zeroed. A nil *Pool is valid
// and simply allocates on every Get.
type Pool struct {
	mu        sync.Mutex
	free      [][]byte
	maxRetain int
}

// New creates a pool that retains returned buffers up to maxRetain bytes
// of capacity each; larger buffers are dropped for the GC to collect.
func New(maxRetain int) *Pool {
	if maxRetain <= 0 {
		maxRetain = defaultMaxRetain
	}
	return &Pool{maxRetain: maxRetain}
}

// Get returns a zero-length buffer with capacity of at least minCap.
func (p *Pool) Get(minCap int) []byte {
	if minCap < 0 {
		minCap = 0
	}
	if p == nil {
		return make([]byte, 0, minCap)
	}
	p.mu.Lock()
	for i, buf := range p.free {
		if cap(buf) >= minCap {
			last := len(p.free) - 1
			p.free[i] = p.free[last]
			p.free[last] = nil
			p.free = p.free[:last]
			p.mu.Unlock()
			return buf[:0]
		}
	}
	p.mu.Unlock()
	return make([]byte, 0, minCap)
}

// Put returns a buffer to the pool. The caller must not use buf afterwards.
func (p *Pool) Put(buf []byte) {
	if p == nil || buf == nil || cap(buf) == 0 || cap(buf) > p.maxRetain {
		return
	}
	p.mu.Lock()
	if len(p.free) < maxFreeBuffers {
		p.free = append(p.free, buf[:0])
	}
	p.mu.Unlock()
}
