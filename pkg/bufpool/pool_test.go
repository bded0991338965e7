package bufpool

import "testing"

func TestGetReturnsRequestedCapacity(t *testing.T) {
	p := New(1024)
	buf := p.Get(100)
	if len(buf) != 0 {
		t.Errorf("len = %d, want 0", len(buf))
	}
	if cap(buf) < 100 {
		t.Errorf("cap = %d, want >= 100", cap(buf))
	}
}

func TestPutThenGetReusesBuffer(t *testing.T) {
	p := New(1024)
	buf := p.Get(64)
	buf = buf[:cap(buf)]
	buf[0] = 42
	p.Put(buf)

	got := p.Get(32)
	if cap(got) < 32 {
		t.Fatalf("cap = %d, want >= 32", cap(got))
	}
	got = got[:1]
	if got[0] != 42 {
		t.Error("Get() did not hand back the pooled buffer")
	}
}

func TestPutDropsOversizedBuffers(t *testing.T) {
	p := New(8)
	big := make([]byte, 1, 64)
	big[0] = 42
	p.Put(big)

	got := p.Get(1)
	got = got[:1]
	if got[0] == 42 {
		t.Error("Get() handed back a buffer larger than maxRetain")
	}
}

func TestNilPoolAllocates(t *testing.T) {
	var p *Pool
	buf := p.Get(16)
	if len(buf) != 0 || cap(buf) < 16 {
		t.Errorf("nil pool Get() = len %d cap %d, want len 0 cap >= 16", len(buf), cap(buf))
	}
	p.Put(buf)
}

func TestFreeListIsBounded(t *testing.T) {
	p := New(1024)
	for i := 0; i < maxFreeBuffers*2; i++ {
		p.Put(make([]byte, 0, 16))
	}
	if len(p.free) != maxFreeBuffers {
		t.Errorf("free list holds %d buffers, want %d", len(p.free), maxFreeBuffers)
	}
}
